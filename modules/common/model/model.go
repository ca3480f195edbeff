package model

import "time"

// APIResponse - envelope of every JSON API reply
type APIResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Code         string `json:"code,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// HealthResponse - /health body
type HealthResponse struct {
	Status  string    `json:"status"`
	Service string    `json:"service"`
	Uptime  string    `json:"uptime"`
	Time    time.Time `json:"time"`
}
