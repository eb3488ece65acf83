package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type authRequest struct {
	SerialNumber string `json:"serial_number"`
	SecretKey    string `json:"secret_key"`
}

// Credentials is the token the server issued for this device
type Credentials struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

// Authenticate exchanges the device serial and secret for a bearer token
func Authenticate(ctx context.Context, httpClient *http.Client, authURL, serial, secret string) (Credentials, error) {
	body, err := json.Marshal(authRequest{SerialNumber: serial, SecretKey: secret})
	if err != nil {
		return Credentials{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, bytes.NewReader(body))
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to reach %s: %w", authURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Credentials{}, fmt.Errorf("authentication failed with status %d: %s", resp.StatusCode, respBody)
	}

	var creds Credentials
	if err := json.Unmarshal(respBody, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if creds.Token == "" {
		return Credentials{}, fmt.Errorf("auth response carried no token")
	}
	return creds, nil
}
