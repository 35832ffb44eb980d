package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nmafoods/api/batch"
	"nmafoods/api/models"
	"nmafoods/api/perf"
	"nmafoods/api/tracker"
)

// Beacon limits. The browser queue flushes at ten events, so anything far
// beyond that is not ours.
const (
	MaxBeaconEvents = 50
	MaxBeaconBytes  = 256 << 10
)

// TrackHandlers receive browser beacons. Every endpoint answers as soon as
// the records are queued.
type TrackHandlers struct {
	tracker *tracker.Tracker
	monitor *perf.Monitor
	visitor Visitor
	log     zerolog.Logger
}

func NewTrackHandlers(t *tracker.Tracker, m *perf.Monitor, v Visitor, log zerolog.Logger) *TrackHandlers {
	return &TrackHandlers{tracker: t, monitor: m, visitor: v, log: log}
}

// TrackEvents accepts an array of events as sent by the browser queue.
// Beacons over MaxBeaconEvents or MaxBeaconBytes are rejected with 413.
func (h *TrackHandlers) TrackEvents(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBeaconBytes)

	var incoming []models.AnalyticsEvent
	if err := c.ShouldBindJSON(&incoming); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			tooManyEvents(c)
			return
		}
		badRequest(c, err)
		return
	}
	if len(incoming) > MaxBeaconEvents {
		tooManyEvents(c)
		return
	}
	if len(incoming) == 0 {
		c.JSON(http.StatusAccepted, gin.H{"accepted": 0})
		return
	}

	first := incoming[0]
	v, _, _ := h.visitor.Visit(c, PageContext{PagePath: first.PagePath, PageTitle: first.PageTitle, Referrer: first.Referrer})

	accepted := 0
	var errs []error
	for _, ev := range incoming {
		if err := h.tracker.Ingest(v, ev); err != nil {
			errs = append(errs, err)
			continue
		}
		accepted++
	}
	if err := errors.Join(errs...); err != nil && accepted == 0 {
		h.queueError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted})
}

func (h *TrackHandlers) TrackPageView(c *gin.Context) {
	var page PageContext
	if err := c.ShouldBindJSON(&page); err != nil {
		badRequest(c, err)
		return
	}
	if page.PagePath == "" {
		page.PagePath = "/"
	}
	v, _, _ := h.visitor.Visit(c, page)
	if err := h.tracker.TrackPageView(v, page.PagePath, page.PageTitle); err != nil {
		h.queueError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sessionId": v.SessionID})
}

type conversionRequest struct {
	PageContext
	Type  models.ConversionType `json:"type" binding:"required"`
	Value *float64              `json:"value"`
	Data  models.ConversionData `json:"data"`
}

func (h *TrackHandlers) TrackConversion(c *gin.Context) {
	var req conversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown conversion type", "type": req.Type})
		return
	}
	v, _, _ := h.visitor.Visit(c, req.PageContext)
	if err := h.tracker.TrackConversion(v, req.Type, req.Value, req.Data); err != nil {
		h.queueError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sessionId": v.SessionID})
}

type commerceRequest struct {
	PageContext
	tracker.Commerce
}

func (h *TrackHandlers) TrackEcommerce(c *gin.Context) {
	var req commerceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, _, _ := h.visitor.Visit(c, req.PageContext)
	if err := h.tracker.TrackCommerce(v, req.Commerce); err != nil {
		h.queueError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sessionId": v.SessionID})
}

type engagementRequest struct {
	PageContext
	tracker.Engagement
}

func (h *TrackHandlers) TrackEngagement(c *gin.Context) {
	var req engagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, _, _ := h.visitor.Visit(c, req.PageContext)
	if err := h.tracker.TrackEngagement(v, req.Engagement); err != nil {
		h.queueError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sessionId": v.SessionID})
}

// StartSession returns the visitor's current session, creating one when
// there is none or it has expired.
func (h *TrackHandlers) StartSession(c *gin.Context) {
	var page PageContext
	if err := c.ShouldBindJSON(&page); err != nil {
		badRequest(c, err)
		return
	}
	_, state, created := h.visitor.Visit(c, page)
	c.JSON(http.StatusOK, gin.H{
		"sessionId": state.ID,
		"startTime": state.Start,
		"sampled":   state.Sampled,
		"created":   created,
	})
}

type endSessionRequest struct {
	ExitPage string `json:"exitPage"`
}

// EndSession is the unload beacon.
func (h *TrackHandlers) EndSession(c *gin.Context) {
	var req endSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	end, ok := h.visitor.Sessions.EndSession(h.visitor.store(c), req.ExitPage)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active session"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"sessionId":       end.SessionID,
		"durationSeconds": end.DurationSeconds,
	})
}

// TrackPerformance queues metrics from a performance report. Reports from
// unsampled sessions are accepted and discarded.
func (h *TrackHandlers) TrackPerformance(c *gin.Context) {
	var report perf.Report
	if err := c.ShouldBindJSON(&report); err != nil {
		badRequest(c, err)
		return
	}
	_, state, _ := h.visitor.Visit(c, PageContext{PagePath: report.PagePath, PageTitle: report.PageTitle})
	n, err := h.monitor.Observe(perf.Scope{
		SessionID: state.ID,
		Sampled:   state.Sampled,
		UserAgent: c.Request.UserAgent(),
	}, report)
	if err != nil && n == 0 {
		h.queueError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": n, "sampled": state.Sampled})
}

func tooManyEvents(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("At most %d events or %d bytes per request", MaxBeaconEvents, MaxBeaconBytes),
	})
}

func (h *TrackHandlers) queueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tracker.ErrUnknownConversion):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, batch.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Tracking is shutting down"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("failed to queue tracking data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record analytics"})
	}
}
