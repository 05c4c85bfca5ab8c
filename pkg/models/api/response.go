package api

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Response represents a general API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Message string      `json:"message,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// SettingsRequest is the body of PUT /api/schedulers/{key}
type SettingsRequest struct {
	Enabled    bool    `json:"enabled"`
	Frequency  string  `json:"frequency"`
	SyncTime   string  `json:"sync_time"`
	Weekdays   *string `json:"weekdays,omitempty"`
	DayOfMonth *int    `json:"day_of_month,omitempty"`
	TimeFormat *string `json:"time_format,omitempty"`
}

// TimeFormatRequest is the body of PUT /api/schedulers/{key}/time-format
type TimeFormatRequest struct {
	TimeFormat string `json:"time_format"`
}
