package agent_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zsprackett/agent-console/internal/agent"
	"github.com/zsprackett/agent-console/internal/db"
	"github.com/zsprackett/agent-console/internal/events"
	"github.com/zsprackett/agent-console/internal/webserver"
	"github.com/zsprackett/agent-console/internal/wsclient"
)

func TestAgentThroughHub(t *testing.T) {
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store.Migrate()
	defer store.Close()
	acc, _ := store.CreateAccount("alice", "unused")
	store.SetAgentToken(acc.ID, "agent-secret")

	hub := webserver.New(store, webserver.Config{
		Auth: webserver.AuthConfig{JWTSecret: "s", AccessTokenTTL: time.Hour},
	}, nil, discardLogger())
	ts := httptest.NewServer(hub.Handler())
	defer ts.Close()
	base := "ws" + strings.TrimPrefix(ts.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := wsclient.New(wsclient.Config{URL: base + "/ws/agent", RetryDelay: 20 * time.Millisecond}, nil, discardLogger())
	a, err := agent.New(agent.Config{UserID: "alice", AgentToken: "agent-secret", BaseDir: t.TempDir()}, client, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	client.SetHandler(a)
	go client.Run(ctx)

	token, _ := webserver.IssueAccessToken("s", "alice", time.Hour)
	op, _, err := websocket.DefaultDialer.Dial(base+"/ws", http.Header{"Authorization": []string{"Bearer " + token}})
	if err != nil {
		t.Fatal(err)
	}
	defer op.Close()

	read := func() (string, events.StatusPayload) {
		t.Helper()
		op.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, raw, err := op.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		env, _ := events.Decode(raw)
		var st events.StatusPayload
		json.Unmarshal(env.Data, &st)
		return env.Event, st
	}

	frame, _ := events.Encode(events.JoinUserRoom, nil)
	op.WriteMessage(websocket.TextMessage, frame)
	for {
		name, st := read()
		if name == events.AgentStatus && st.Status == events.StatusConnected {
			break
		}
	}

	frame, _ = events.Encode(events.CreateProjectRequest, events.CreateProjectPayload{
		ProjectName: "demo", ProjectType: "python-basic", BasePath: a.BaseDir(),
	})
	op.WriteMessage(websocket.TextMessage, frame)

	if name, st := read(); name != events.ProjectStatus || st.Status != events.StatusPending {
		t.Fatalf("expected pending, got %s %+v", name, st)
	}
	name, st := read()
	if name != events.ProjectStatus || st.Status != events.StatusSuccess {
		t.Fatalf("expected success, got %s %+v", name, st)
	}
	if _, err := os.Stat(filepath.Join(a.BaseDir(), "demo", "main.py")); err != nil {
		t.Errorf("project not created: %v", err)
	}
}
