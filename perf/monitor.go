// Package perf turns browser performance observer entries into sampled
// performance metrics.
package perf

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nmafoods/api/models"
	"nmafoods/api/utils"
)

// Entry types accepted in a Report.
const (
	EntryLCP         = "largest-contentful-paint"
	EntryFirstInput  = "first-input"
	EntryLayoutShift = "layout-shift"
	EntryNavigation  = "navigation"
	EntryResource    = "resource"
	EntryMeasure     = "measure"
	EntryMemory      = "memory"
	EntryNetwork     = "network"
)

// SlowResourceMs is the duration a resource must exceed to be recorded.
const SlowResourceMs = 100

// Capabilities lists the observer APIs the browser reported as present.
// Instrumentation whose API is missing is skipped.
type Capabilities struct {
	PerformanceObserver bool `json:"performanceObserver"`
	Navigation          bool `json:"navigation"`
	Memory              bool `json:"memory"`
	Connection          bool `json:"connection"`
}

// Entry is one observer entry in the shape the browser produced it. Only the
// fields relevant to EntryType are set.
type Entry struct {
	EntryType       string  `json:"entryType" binding:"required"`
	Name            string  `json:"name,omitempty"`
	StartTime       float64 `json:"startTime"`
	Duration        float64 `json:"duration"`
	ProcessingStart float64 `json:"processingStart,omitempty"`

	// largest-contentful-paint
	Element string `json:"element,omitempty"`
	URL     string `json:"url,omitempty"`

	// layout-shift
	Value          float64 `json:"value,omitempty"`
	HadRecentInput bool    `json:"hadRecentInput,omitempty"`

	// resource
	InitiatorType   string `json:"initiatorType,omitempty"`
	TransferSize    int64  `json:"transferSize,omitempty"`
	DecodedBodySize int64  `json:"decodedBodySize,omitempty"`

	// navigation, relative to the navigation start
	DomainLookupStart        float64 `json:"domainLookupStart,omitempty"`
	DomainLookupEnd          float64 `json:"domainLookupEnd,omitempty"`
	ConnectStart             float64 `json:"connectStart,omitempty"`
	ConnectEnd               float64 `json:"connectEnd,omitempty"`
	SecureConnectionStart    float64 `json:"secureConnectionStart,omitempty"`
	RequestStart             float64 `json:"requestStart,omitempty"`
	ResponseStart            float64 `json:"responseStart,omitempty"`
	ResponseEnd              float64 `json:"responseEnd,omitempty"`
	DOMContentLoadedEventEnd float64 `json:"domContentLoadedEventEnd,omitempty"`
	DOMComplete              float64 `json:"domComplete,omitempty"`
	LoadEventEnd             float64 `json:"loadEventEnd,omitempty"`

	// memory
	UsedJSHeapSize  int64 `json:"usedJSHeapSize,omitempty"`
	TotalJSHeapSize int64 `json:"totalJSHeapSize,omitempty"`
	JSHeapSizeLimit int64 `json:"jsHeapSizeLimit,omitempty"`

	// network
	Downlink      float64 `json:"downlink,omitempty"`
	EffectiveType string  `json:"effectiveType,omitempty"`
	RTT           float64 `json:"rtt,omitempty"`
	SaveData      bool    `json:"saveData,omitempty"`
}

// Report is one beacon of performance entries from a page.
type Report struct {
	PagePath       string       `json:"pagePath"`
	PageTitle      string       `json:"pageTitle,omitempty"`
	ConnectionType string       `json:"connectionType,omitempty"`
	ViewportWidth  int          `json:"viewportWidth"`
	ViewportHeight int          `json:"viewportHeight"`
	Capabilities   Capabilities `json:"capabilities"`
	Entries        []Entry      `json:"entries"`
}

// Scope identifies the session a report belongs to.
type Scope struct {
	SessionID string
	Sampled   bool
	UserAgent string
}

// Enqueuer accepts metrics for batched delivery.
type Enqueuer interface {
	Enqueue(m models.PerformanceMetric) error
}

type Monitor struct {
	queue Enqueuer
	log   zerolog.Logger
	now   func() time.Time
}

func NewMonitor(queue Enqueuer, log zerolog.Logger) *Monitor {
	return &Monitor{queue: queue, log: log, now: time.Now}
}

// Observe converts r into metrics and enqueues them. Nothing is enqueued
// for an unsampled session. It returns the number of metrics enqueued.
func (m *Monitor) Observe(sc Scope, r Report) (int, error) {
	if !sc.Sampled {
		return 0, nil
	}

	metrics := Metrics(r)
	if len(metrics) == 0 {
		return 0, nil
	}

	device := utils.ParseUserAgent(sc.UserAgent)
	connection := r.ConnectionType
	if connection == "" {
		connection = "unknown"
	}
	now := m.now().UTC()

	n := 0
	for _, metric := range metrics {
		metric.MetricID = uuid.New().String()
		metric.SessionID = sc.SessionID
		metric.PagePath = r.PagePath
		metric.PageTitle = r.PageTitle
		metric.DeviceType = device.DeviceType
		metric.Browser = device.Browser
		metric.OS = device.OS
		metric.ConnectionType = connection
		metric.ViewportWidth = r.ViewportWidth
		metric.ViewportHeight = r.ViewportHeight
		metric.Timestamp = now

		if err := m.queue.Enqueue(metric); err != nil {
			return n, err
		}
		n++
	}

	m.log.Debug().Str("session_id", sc.SessionID).Int("metrics", n).Msg("performance report queued")
	return n, nil
}

// Metrics derives the metrics in r without session context. Entries whose
// API the browser did not report are ignored.
func Metrics(r Report) []models.PerformanceMetric {
	var (
		out       []models.PerformanceMetric
		lcp       *Entry
		cls       float64
		sawShifts bool
	)
	caps := r.Capabilities

	for i := range r.Entries {
		e := &r.Entries[i]
		switch e.EntryType {
		case EntryLCP:
			if caps.PerformanceObserver {
				lcp = e
			}
		case EntryFirstInput:
			if caps.PerformanceObserver {
				out = append(out, metric(models.MetricTypeCoreWebVitals, "FID", e.ProcessingStart-e.StartTime, "ms",
					map[string]any{"eventType": e.Name}))
			}
		case EntryLayoutShift:
			if caps.PerformanceObserver {
				sawShifts = true
				if !e.HadRecentInput {
					cls += e.Value
				}
			}
		case EntryNavigation:
			if caps.Navigation {
				out = append(out, navigationMetrics(e)...)
			}
		case EntryResource:
			if caps.PerformanceObserver && e.Duration > SlowResourceMs {
				out = append(out, metric(models.MetricTypeResourceTiming, "resource_load", e.Duration, "ms", map[string]any{
					"resourceType": e.InitiatorType,
					"resourceUrl":  e.Name,
					"resourceSize": e.TransferSize,
					"cached":       e.TransferSize == 0 && e.DecodedBodySize > 0,
				}))
			}
		case EntryMeasure:
			if caps.PerformanceObserver && e.Name != "" {
				out = append(out, metric(models.MetricTypeUserTiming, e.Name, e.Duration, "ms", nil))
			}
		case EntryMemory:
			if caps.Memory {
				out = append(out, metric(models.MetricTypeUserTiming, "memory_used", float64(e.UsedJSHeapSize), "bytes", map[string]any{
					"totalHeapSize": e.TotalJSHeapSize,
					"heapSizeLimit": e.JSHeapSizeLimit,
				}))
			}
		case EntryNetwork:
			if caps.Connection {
				out = append(out, metric(models.MetricTypeUserTiming, "network_info", e.Downlink, "mbps", map[string]any{
					"effectiveType": e.EffectiveType,
					"rtt":           e.RTT,
					"saveData":      e.SaveData,
				}))
			}
		}
	}

	// Only the latest LCP candidate counts.
	if lcp != nil {
		out = append(out, metric(models.MetricTypeCoreWebVitals, "LCP", lcp.StartTime, "ms", map[string]any{
			"element": orUnknown(lcp.Element),
			"url":     lcp.URL,
		}))
	}
	if sawShifts {
		out = append(out, metric(models.MetricTypeCoreWebVitals, "CLS", cls, "score", map[string]any{"finalValue": true}))
	}
	return out
}

func navigationMetrics(e *Entry) []models.PerformanceMetric {
	out := []models.PerformanceMetric{
		metric(models.MetricTypePageLoad, "DNS_lookup", e.DomainLookupEnd-e.DomainLookupStart, "ms", nil),
		metric(models.MetricTypePageLoad, "TCP_connection", e.ConnectEnd-e.ConnectStart, "ms", nil),
	}
	if e.SecureConnectionStart > 0 {
		out = append(out, metric(models.MetricTypePageLoad, "SSL_negotiation", e.ConnectEnd-e.SecureConnectionStart, "ms", nil))
	}
	out = append(out,
		metric(models.MetricTypePageLoad, "TTFB", e.ResponseStart-e.RequestStart, "ms", nil),
		metric(models.MetricTypePageLoad, "DOM_content_loaded", e.DOMContentLoadedEventEnd-e.StartTime, "ms", nil),
		metric(models.MetricTypePageLoad, "page_load_complete", e.LoadEventEnd-e.StartTime, "ms", nil),
		metric(models.MetricTypePageLoad, "DOM_processing", e.DOMComplete-e.ResponseEnd, "ms", nil),
	)
	return out
}

func metric(kind, name string, value float64, unit string, extra map[string]any) models.PerformanceMetric {
	if extra == nil {
		extra = map[string]any{}
	}
	return models.PerformanceMetric{
		MetricType:     kind,
		MetricName:     name,
		MetricValue:    value,
		MetricUnit:     unit,
		AdditionalData: extra,
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
