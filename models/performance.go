package models

import "time"

const (
	MetricTypePageLoad       = "page_load"
	MetricTypeCoreWebVitals  = "core_web_vitals"
	MetricTypeUserTiming     = "user_timing"
	MetricTypeResourceTiming = "resource_timing"
)

// PerformanceMetric is one sampled measurement taken in a visitor's browser.
type PerformanceMetric struct {
	MetricID       string         `json:"metricId"`
	SessionID      string         `json:"sessionId"`
	PagePath       string         `json:"pagePath"`
	PageTitle      string         `json:"pageTitle,omitempty"`
	MetricType     string         `json:"metricType"`
	MetricName     string         `json:"metricName"`
	MetricValue    float64        `json:"metricValue"`
	MetricUnit     string         `json:"metricUnit"`
	DeviceType     string         `json:"deviceType"`
	ConnectionType string         `json:"connectionType"`
	Browser        string         `json:"browser"`
	OS             string         `json:"os"`
	ViewportWidth  int            `json:"viewportWidth"`
	ViewportHeight int            `json:"viewportHeight"`
	AdditionalData map[string]any `json:"additionalData,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// PerformanceInsight summarizes one metric over a time range.
type PerformanceInsight struct {
	MetricType string   `json:"type"`
	MetricName string   `json:"name"`
	Unit       string   `json:"unit"`
	Count      uint64   `json:"count"`
	Average    float64  `json:"average"`
	Median     float64  `json:"median"`
	P95        float64  `json:"p95"`
	Budget     *float64 `json:"budget,omitempty"`
	OverBudget bool     `json:"overBudget"`
}
