package session

import "time"

// CreateRequest defines payload for creating a new tab session.
type CreateRequest struct {
	PageURL string `json:"page_url"`
}

// CreateResponse returns created tab session metadata.
type CreateResponse struct {
	TabID           string    `json:"tab_id"`
	PageURL         string    `json:"page_url"`
	Status          Status    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
