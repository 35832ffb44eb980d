package models

import "time"

// Session is one bounded window of visitor activity, persisted in Postgres.
type Session struct {
	SessionID       string     `json:"sessionId"`
	UserID          string     `json:"userId,omitempty"`
	EntryPage       string     `json:"entryPage"`
	ExitPage        string     `json:"exitPage,omitempty"`
	Referrer        string     `json:"referrer,omitempty"`
	DeviceType      string     `json:"deviceType"`
	Browser         string     `json:"browser"`
	OS              string     `json:"os"`
	UserAgent       string     `json:"userAgent,omitempty"`
	UTM             UTM        `json:"utm"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationSeconds *int64     `json:"durationSeconds,omitempty"`
}

// SessionEnd is the unload update applied to an existing session.
type SessionEnd struct {
	SessionID       string
	EndTime         time.Time
	DurationSeconds int64
	ExitPage        string
}
