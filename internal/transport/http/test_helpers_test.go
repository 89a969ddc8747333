package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/meakaliaG/cocanvas-server/internal/auth"
	"github.com/meakaliaG/cocanvas-server/internal/config"
	"github.com/meakaliaG/cocanvas-server/internal/core"
	"github.com/meakaliaG/cocanvas-server/internal/proto"
	"github.com/meakaliaG/cocanvas-server/internal/store/sqlite"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type testEnv struct {
	ts          *httptest.Server
	authService *auth.Service
	store       *sqlite.SQLiteStore
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	hub := core.NewHub(st, st, auth.ComparePassword, nil)

	cfg := config.Default()
	server := NewServer(hub, authService, st, &cfg, testLogger())
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, authService: authService, store: st}
}

func (e *testEnv) signup(t *testing.T, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(SignupRequest{Username: username, Password: password})
	resp, err := e.ts.Client().Post(e.ts.URL+"/api/signup", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("signup %s: %v", username, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 201 {
		t.Fatalf("signup %s status = %d", username, resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	return authResp.Token
}

func (e *testEnv) dialWS(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendWS(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", msgType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil reads outbound envelopes until one of the wanted type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) json.RawMessage {
	t.Helper()

	for i := 0; i < 20; i++ {
		var outbound struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			t.Fatalf("read waiting for %s: %v", wantType, err)
		}
		if outbound.Type == wantType {
			return outbound.Data
		}
	}
	t.Fatalf("no %s message received", wantType)
	return nil
}
