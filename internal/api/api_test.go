package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/parley/adapters"
	"github.com/satriahrh/parley/adapters/speech"
	"github.com/satriahrh/parley/domain/entities"
	"github.com/satriahrh/parley/internal/auth"
	"github.com/satriahrh/parley/internal/protocol"
	"github.com/satriahrh/parley/internal/transport"
	"github.com/satriahrh/parley/internal/websocket"
)

type testServer struct {
	http          *httptest.Server
	hub           *websocket.Hub
	orchestrators net.Addr
	authenticator *auth.Authenticator
	history       *adapters.MemorySessionRepository
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	repo := adapters.NewMemoryDeviceRepository()
	if err := repo.Seed(ctx, map[string]string{"SN-1": "abc"}); err != nil {
		t.Fatal(err)
	}
	authenticator, err := auth.NewAuthenticator("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	history := adapters.NewMemorySessionRepository()
	cfg := websocket.DefaultConfig()
	cfg.History = history
	hub := websocket.NewHub(speech.NewMockSpeechToText(logger), speech.NewMockTextToSpeech(logger), cfg, logger)
	go hub.Run(ctx)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go hub.Serve(ctx, ln)

	e := echo.New()
	InitRoutes(e, hub, repo, history, authenticator, logger)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return &testServer{http: server, hub: hub, orchestrators: ln.Addr(), authenticator: authenticator, history: history}
}

func (s *testServer) authenticate(t *testing.T, serial, secret string) (*http.Response, DeviceAuthResponse) {
	t.Helper()
	body, _ := json.Marshal(DeviceAuthRequest{SerialNumber: serial, SecretKey: secret})
	resp, err := http.Post(s.http.URL+"/api/v1/device/auth", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out DeviceAuthResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	s := setupServer(t)

	resp, err := http.Get(s.http.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || health.Status != "ok" {
		t.Errorf("unexpected health %d %+v", resp.StatusCode, health)
	}
	if health.ActiveSessions != 0 || health.WaitingDevices != 0 {
		t.Errorf("expected an idle server, got %+v", health)
	}
}

func TestDeviceAuth(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name   string
		serial string
		secret string
		status int
	}{
		{name: "valid", serial: "SN-1", secret: "abc", status: http.StatusOK},
		{name: "wrong secret", serial: "SN-1", secret: "nope", status: http.StatusUnauthorized},
		{name: "unknown device", serial: "SN-2", secret: "abc", status: http.StatusUnauthorized},
		{name: "missing fields", serial: "", secret: "", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := s.authenticate(t, tt.serial, tt.secret)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, resp.StatusCode)
			}
			if tt.status != http.StatusOK {
				return
			}
			claims, err := s.authenticator.ValidateToken(out.Token)
			if err != nil {
				t.Fatalf("issued token does not validate: %v", err)
			}
			if claims.DeviceID != out.DeviceID || claims.Role != auth.RoleDevice {
				t.Errorf("unexpected claims %+v", claims)
			}
		})
	}
}

func TestWebSocketRequiresDeviceToken(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-token", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, s.http.URL+"/ws", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestDeviceMeetsOrchestrator(t *testing.T) {
	s := setupServer(t)

	_, creds := s.authenticate(t, "SN-1", "abc")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
	device, err := transport.DialServer(ctx, wsURL, creds.Token)
	if err != nil {
		t.Fatalf("DialServer: %v", err)
	}
	defer device.Close()

	deadline := time.Now().Add(5 * time.Second)
	for s.hub.Waiting() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("device never queued")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn, err := net.Dial("tcp", s.orchestrators.String())
	if err != nil {
		t.Fatal(err)
	}
	orchestrator := transport.NewConnStream(conn)
	defer orchestrator.Close()

	start, err := protocol.NewSessionStart(protocol.SessionConfig{SessionID: "s-42"})
	if err != nil {
		t.Fatal(err)
	}
	if err := orchestrator.Send(start); err != nil {
		t.Fatal(err)
	}

	if m, err := device.Receive(); err != nil || m != (protocol.Ready{}) {
		t.Fatalf("expected Ready on the device, got %#v, %v", m, err)
	}
	if m, err := orchestrator.Receive(); err != nil || m != (protocol.SessionReady{}) {
		t.Fatalf("expected SessionReady, got %#v, %v", m, err)
	}

	if err := orchestrator.Send(protocol.Feedback{Text: "nice"}); err != nil {
		t.Fatal(err)
	}
	if m, err := device.Receive(); err != nil || m != (protocol.TextDisplay{Text: "nice"}) {
		t.Fatalf("expected TextDisplay, got %#v, %v", m, err)
	}

	resp, err := http.Get(s.http.URL + "/api/v1/sessions")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var sessions []websocket.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s-42" || sessions[0].DeviceID != creds.DeviceID {
		t.Errorf("unexpected sessions %+v", sessions)
	}
}

func TestDeviceHistory(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	ended := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		err := s.history.Save(ctx, &entities.SessionRecord{
			ID:        id,
			DeviceID:  "device-1",
			Turns:     3,
			StartedAt: ended.Add(time.Duration(i)*time.Hour - time.Minute),
			EndedAt:   ended.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	resp, err := http.Get(s.http.URL + "/api/v1/devices/device-1/sessions?limit=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var records []entities.SessionRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "new" {
		t.Errorf("expected only the latest session, got %+v", records)
	}

	resp, err = http.Get(s.http.URL + "/api/v1/devices/unknown/sessions")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var empty []entities.SessionRecord
	if err := json.NewDecoder(resp.Body).Decode(&empty); err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected an empty list, got %v", empty)
	}

	resp, err = http.Get(s.http.URL + "/api/v1/devices/device-1/sessions?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad limit, got %d", resp.StatusCode)
	}
}
