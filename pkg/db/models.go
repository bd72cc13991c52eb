package db

import (
	"time"
)

// Session is one sampling run against a driver.
type Session struct {
	ID        int64      `json:"id"`
	Driver    string     `json:"driver"`
	Vendor    string     `json:"vendor"`
	Brand     string     `json:"brand"`
	Kind      string     `json:"kind"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Samples   int        `json:"samples"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Sample is one set of CPU readings taken during a session.
type Sample struct {
	ID           int64     `json:"id"`
	SessionID    int64     `json:"session_id"`
	TakenAt      time.Time `json:"taken_at"`
	TjMax        int       `json:"tjmax"`
	PackageTemp  int       `json:"package_temp"`
	Ratio        int       `json:"ratio"`
	FrequencyMHz int       `json:"frequency_mhz"`
}

// Duration returns the duration of the session
func (s *Session) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Finished reports whether the session has ended
func (s *Session) Finished() bool {
	return s.EndTime != nil
}

// SessionFilter represents filters for querying sessions
type SessionFilter struct {
	Driver    string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// SampleFilter represents filters for querying samples
type SampleFilter struct {
	SessionID *int64
	Since     *time.Time
	Limit     int
}

// ExportFormat represents the format for exporting data
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)
