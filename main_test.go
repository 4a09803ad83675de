package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zsprackett/agent-console/internal/db"
	"github.com/zsprackett/agent-console/internal/webserver"
	"github.com/zsprackett/agent-console/internal/wsclient"
)

func TestHubHTTPURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ws://localhost:5000/ws", "http://localhost:5000"},
		{"wss://hub.example.com/ws?token=x", "https://hub.example.com"},
		{"http://10.0.0.2:5000", "http://10.0.0.2:5000"},
	}
	for _, tc := range cases {
		got, err := hubHTTPURL(tc.in)
		if err != nil {
			t.Errorf("%s: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("hubHTTPURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if _, err := hubHTTPURL("ftp://x"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func newLoginServer(t *testing.T) *webserver.Server {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store.Migrate()
	t.Cleanup(func() { store.Close() })
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if _, err := store.CreateAccount("alice", string(hash)); err != nil {
		t.Fatal(err)
	}
	return webserver.New(store, webserver.Config{
		Auth: webserver.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour},
	}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRequestLogin(t *testing.T) {
	ts := httptest.NewServer(newLoginServer(t).Handler())
	defer ts.Close()

	tokens, err := requestLogin(ts.URL, "alice", []byte("password"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if tokens.AccessToken == "" || tokens.AgentToken == "" || tokens.UserID != "alice" {
		t.Errorf("got %+v", tokens)
	}

	if _, err := requestLogin(ts.URL, "alice", []byte("wrong"), nil); err == nil {
		t.Error("expected error for wrong password")
	}
}

func TestRequestLoginOverTLS(t *testing.T) {
	dir := t.TempDir()
	serverTLS, err := webserver.SelfSignedTLS(dir, []string{"localhost", "127.0.0.1"})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewUnstartedServer(newLoginServer(t).Handler())
	ts.TLS = serverTLS
	ts.StartTLS()
	defer ts.Close()

	if _, err := requestLogin(ts.URL, "alice", []byte("password"), nil); err == nil {
		t.Fatal("expected the untrusted certificate to be rejected")
	}

	clientTLS, err := wsclient.TLSConfig(webserver.CertPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := requestLogin(ts.URL, "alice", []byte("password"), clientTLS)
	if err != nil {
		t.Fatal(err)
	}
	if tokens.UserID != "alice" {
		t.Errorf("got %+v", tokens)
	}
}

func TestChangePasswordRevokesAgentToken(t *testing.T) {
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store.Migrate()
	defer store.Close()
	acc, err := store.CreateAccount("alice", "old-hash")
	if err != nil {
		t.Fatal(err)
	}
	store.SetAgentToken(acc.ID, "agent-secret")

	if err := changePassword(store, "alice", []byte("new-hash")); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetAccountByUsername("alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.PasswordHash != "new-hash" {
		t.Errorf("password hash: got %q", got.PasswordHash)
	}
	if _, err := store.GetAgentToken(acc.ID); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected agent token to be revoked, got %v", err)
	}

	if err := changePassword(store, "nobody", []byte("x")); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestChangePasswordReportsStoreFailure(t *testing.T) {
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store.Migrate()
	store.CreateAccount("alice", "old-hash")
	store.Close()

	if err := changePassword(store, "alice", []byte("new-hash")); err == nil {
		t.Error("expected an error from a closed store")
	}
}
