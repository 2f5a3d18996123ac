package server

import (
	"sync"
	"testing"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"
)

func TestStreamSession_QueuePreservesOrder(t *testing.T) {
	s := newStreamSession(time.Now())

	const n = 100
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		i := i
		ok := s.enqueue(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
		if !ok {
			t.Fatalf("enqueue %d rejected on an open session", i)
		}
	}
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("execution order[%d] = %d; queue must preserve arrival order", i, got)
		}
	}
}

func TestStreamSession_EnqueueAfterCloseRejected(t *testing.T) {
	s := newStreamSession(time.Now())
	s.close()

	if s.enqueue(func() { t.Error("work ran on a closed session") }) {
		t.Error("enqueue accepted on a closed session")
	}
}

func TestStreamSession_ActiveCounter(t *testing.T) {
	s := newStreamSession(time.Now())
	now := time.Now()

	s.beginWork(now)
	if s.idleSince(now.Add(time.Hour)) {
		t.Error("session with in-flight work reported idle")
	}

	s.endWork(now.Add(time.Second))
	if !s.idleSince(now.Add(time.Hour)) {
		t.Error("session with no in-flight work and old lastAccess not idle")
	}
}

func TestStreamSession_AuthOverrideReplacedWholesale(t *testing.T) {
	s := newStreamSession(time.Now())

	s.SetAuthOverride(creds.SessionAuth{Token: "first", BaseURL: "https://a.example.com"})
	s.SetAuthOverride(creds.SessionAuth{Token: "second"})

	got := s.AuthOverride()
	if got.Token != "second" || got.BaseURL != "" {
		t.Errorf("AuthOverride() = %+v; a fresh override must replace the whole value", got)
	}
}
