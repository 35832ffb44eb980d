// api/models/event.go
package models

import (
	"time"
)

// AnalyticsEvent is a single behavioral event as stored in ClickHouse.
// Browsers send the descriptive fields; the API fills ids, IP, device and
// location before the event is queued.
type AnalyticsEvent struct {
	EventID          string         `json:"eventId"`
	EventName        string         `json:"eventName" binding:"required"`
	EventCategory    string         `json:"eventCategory" binding:"required"`
	EventAction      string         `json:"eventAction,omitempty"`
	EventLabel       string         `json:"eventLabel,omitempty"`
	EventValue       *float64       `json:"eventValue,omitempty"`
	UserID           string         `json:"userId,omitempty"`
	SessionID        string         `json:"sessionId"`
	Timestamp        time.Time      `json:"timestamp"`
	PagePath         string         `json:"pagePath"`
	PageTitle        string         `json:"pageTitle,omitempty"`
	Referrer         string         `json:"referrer,omitempty"`
	UserAgent        string         `json:"userAgent,omitempty"`
	IPAddress        string         `json:"ipAddress,omitempty"`
	DeviceType       string         `json:"deviceType,omitempty"`
	Browser          string         `json:"browser,omitempty"`
	OS               string         `json:"os,omitempty"`
	Location         string         `json:"location,omitempty"`
	UTM              UTM            `json:"utm"`
	CustomParameters map[string]any `json:"customParameters,omitempty"`
}

// UTM holds campaign attribution parsed from the landing URL.
type UTM struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

type TopPathResult struct {
	PagePath string `json:"pagePath"`
	Count    uint64 `json:"count"`
}

type LabeledCount struct {
	Label      string  `json:"label"`
	Count      uint64  `json:"count"`
	Percentage float64 `json:"percentage"`
}
