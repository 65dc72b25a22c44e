package model

import "time"

// PushSubscription is a browser push endpoint registered for a zone.
type PushSubscription struct {
	Endpoint   string    `json:"endpoint"`
	Zone       string    `json:"zone"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
