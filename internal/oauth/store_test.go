package oauth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens", "oauth_token.json")
	store, err := NewTokenStore(path)
	if err != nil {
		t.Fatal(err)
	}

	expiry := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	err = store.Save(&oauth2.Token{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-xyz",
		TokenType:    "Bearer",
		Expiry:       expiry,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file permissions = %o, want 0600", perm)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.AccessToken != "access-abc" || loaded.RefreshToken != "refresh-xyz" {
		t.Errorf("Load() = %+v, want saved token values", loaded)
	}
	if !loaded.Expiry.Equal(expiry) {
		t.Errorf("Load() expiry = %v, want %v", loaded.Expiry, expiry)
	}
}

func TestTokenStore_LoadMissingFile(t *testing.T) {
	store, err := NewTokenStore(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}

	token, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
	if token != nil {
		t.Errorf("Load() = %+v, want nil", token)
	}
}

func TestTokenStore_SaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oauth_token.json")
	store, err := NewTokenStore(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Save(&oauth2.Token{AccessToken: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(&oauth2.Token{AccessToken: "second"}); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.AccessToken != "second" {
		t.Errorf("AccessToken = %q, want second", loaded.AccessToken)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the token file", len(entries))
	}
}

func TestStoredToken_ValidAt(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		token *StoredToken
		want  bool
	}{
		{"nil token", nil, false},
		{"empty access token", &StoredToken{}, false},
		{"no expiry", &StoredToken{AccessToken: "t"}, true},
		{"well before expiry", &StoredToken{AccessToken: "t", Expiry: now.Add(time.Hour)}, true},
		{"inside early-expiry margin", &StoredToken{AccessToken: "t", Expiry: now.Add(2 * time.Minute)}, false},
		{"already expired", &StoredToken{AccessToken: "t", Expiry: now.Add(-time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.ValidAt(now); got != tt.want {
				t.Errorf("ValidAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenStore_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oauth_token.json")
	store, err := NewTokenStore(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Save(&oauth2.Token{AccessToken: "t"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("Delete() on absent file error = %v", err)
	}

	token, err := store.Load()
	if err != nil || token != nil {
		t.Errorf("Load() after delete = (%+v, %v), want (nil, nil)", token, err)
	}
}
