package creds

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/pkg/logging"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
)

// CookieRuntime loads a browser-exported cookie jar, reloads it when its
// backing file changes, and performs one-time warm-up requests per API
// root so server-side session state exists before real calls are sent.
type CookieRuntime struct {
	jarPath    string
	warmupPath string
	httpClient *http.Client

	mu         sync.Mutex
	jar        *cookiejar.Jar
	lastMod    time.Time
	dirty      bool
	warmed     map[string]bool

	reload  singleflight.Group
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewCookieRuntime creates a runtime for the given Netscape-format cookie
// file. The jar is loaded lazily on first use. A filesystem watcher marks
// the jar dirty on change events; the file's modification time remains the
// authoritative staleness check so editors that replace the file inode are
// still picked up.
func NewCookieRuntime(jarPath, warmupPath string, requestTimeout time.Duration) (*CookieRuntime, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	rt := &CookieRuntime{
		jarPath:    jarPath,
		warmupPath: warmupPath,
		jar:        jar,
		warmed:     make(map[string]bool),
		done:       make(chan struct{}),
		httpClient: &http.Client{Timeout: requestTimeout, Jar: jar},
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("CookieRuntime", "Filesystem watcher unavailable, falling back to mtime polling only: %v", err)
	} else {
		rt.watcher = watcher
		if err := watcher.Add(jarPath); err != nil {
			logging.Warn("CookieRuntime", "Cannot watch cookie jar %s: %v", jarPath, err)
		}
		go rt.watchLoop()
	}

	return rt, nil
}

// watchLoop flips the dirty flag whenever the backing file changes.
func (rt *CookieRuntime) watchLoop() {
	for {
		select {
		case <-rt.done:
			return
		case event, ok := <-rt.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				rt.mu.Lock()
				rt.dirty = true
				rt.mu.Unlock()
			}
		case err, ok := <-rt.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("CookieRuntime", "Cookie jar watcher error: %v", err)
		}
	}
}

// Client returns an HTTP client carrying the loaded cookie jar.
func (rt *CookieRuntime) Client() *http.Client {
	return rt.httpClient
}

// EnsureFresh reloads the jar if the backing file changed since the last
// load. Concurrent callers collapse into one reload; everyone waits for
// the same in-progress attempt instead of triggering duplicates. A reload
// clears the warmed-root memory.
func (rt *CookieRuntime) EnsureFresh(ctx context.Context) error {
	info, err := os.Stat(rt.jarPath)
	if err != nil {
		return fmt.Errorf("cookie jar %s: %w", rt.jarPath, err)
	}

	rt.mu.Lock()
	stale := rt.dirty || rt.lastMod.IsZero() || info.ModTime().After(rt.lastMod)
	rt.mu.Unlock()

	if !stale {
		return nil
	}

	_, err, _ = rt.reload.Do("reload", func() (interface{}, error) {
		return nil, rt.reloadJar(info.ModTime())
	})
	return err
}

// reloadJar parses the backing file into a fresh jar and swaps it in.
func (rt *CookieRuntime) reloadJar(modTime time.Time) error {
	cookies, err := parseNetscapeJar(rt.jarPath)
	if err != nil {
		return err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	for origin, list := range cookies {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		jar.SetCookies(u, list)
	}

	rt.mu.Lock()
	rt.jar = jar
	rt.httpClient.Jar = jar
	rt.lastMod = modTime
	rt.dirty = false
	rt.warmed = make(map[string]bool)
	rt.mu.Unlock()

	logging.Info("CookieRuntime", "Reloaded cookie jar from %s (%d origins)", rt.jarPath, len(cookies))
	return nil
}

// WarmRoot issues the configured warm-up request once per API root. The
// call is best-effort: failures are logged and never block the real call.
// Any status below the server-error threshold marks the root warmed.
func (rt *CookieRuntime) WarmRoot(ctx context.Context, root string) {
	rt.mu.Lock()
	already := rt.warmed[root]
	rt.mu.Unlock()
	if already {
		return
	}

	warmURL := strings.TrimRight(root, "/") + rt.warmupPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, warmURL, nil)
	if err != nil {
		logging.Warn("CookieRuntime", "Warm-up request for %s could not be built: %v", root, err)
		return
	}

	resp, err := rt.httpClient.Do(req)
	if err != nil {
		logging.Warn("CookieRuntime", "Warm-up request to %s failed: %v", warmURL, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		logging.Warn("CookieRuntime", "Warm-up request to %s returned %d, will retry on next call", warmURL, resp.StatusCode)
		return
	}

	rt.mu.Lock()
	rt.warmed[root] = true
	rt.mu.Unlock()
	logging.Debug("CookieRuntime", "API root %s warmed (status %d)", root, resp.StatusCode)
}

// Close stops the filesystem watcher.
func (rt *CookieRuntime) Close() error {
	close(rt.done)
	if rt.watcher != nil {
		return rt.watcher.Close()
	}
	return nil
}

// parseNetscapeJar reads a Netscape-format cookie file (the format browser
// export extensions and curl produce). Returns cookies grouped by origin
// URL. Lines starting with # are comments, except the #HttpOnly_ prefix
// some exporters emit in front of the domain.
func parseNetscapeJar(path string) (map[string][]*http.Cookie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cookie jar %s: %w", path, err)
	}
	defer f.Close()

	cookies := make(map[string][]*http.Cookie)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "#HttpOnly_") {
			continue
		}
		line = strings.TrimPrefix(line, "#HttpOnly_")

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}

		domain := strings.TrimPrefix(fields[0], ".")
		secure := strings.EqualFold(fields[3], "TRUE")
		name := fields[5]
		value := fields[6]

		cookie := &http.Cookie{
			Name:   name,
			Value:  value,
			Path:   fields[2],
			Domain: fields[0],
			Secure: secure,
		}
		if expires, err := strconv.ParseInt(fields[4], 10, 64); err == nil && expires > 0 {
			cookie.Expires = time.Unix(expires, 0)
		}

		scheme := "https"
		if !secure {
			scheme = "http"
		}
		origin := scheme + "://" + domain
		cookies[origin] = append(cookies[origin], cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cookie jar %s: %w", path, err)
	}

	return cookies, nil
}
