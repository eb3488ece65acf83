package entities

import (
	"errors"
	"time"
)

// Device is a client allowed to open a conversation
type Device struct {
	ID           string    `json:"id"`
	SerialNumber string    `json:"serial_number"`
	SecretKey    string    `json:"-"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (d *Device) Validate() error {
	if d.SerialNumber == "" {
		return errors.New("serial number is required")
	}
	if d.SecretKey == "" {
		return errors.New("secret key is required")
	}
	return nil
}
