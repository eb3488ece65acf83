package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthenticate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/device/auth" {
			http.NotFound(w, r)
			return
		}
		var req authRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.SerialNumber != "SN-1" || req.SecretKey != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"authentication_failed"}`))
			return
		}
		json.NewEncoder(w).Encode(Credentials{
			Token:     "token-1",
			ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
			DeviceID:  "device-1",
		})
	}))
	defer server.Close()

	url := server.URL + "/api/v1/device/auth"

	creds, err := Authenticate(context.Background(), server.Client(), url, "SN-1", "abc")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if creds.Token != "token-1" || creds.DeviceID != "device-1" {
		t.Errorf("unexpected credentials %+v", creds)
	}

	if _, err := Authenticate(context.Background(), server.Client(), url, "SN-1", "wrong"); err == nil {
		t.Error("expected wrong secret to fail")
	}
}
