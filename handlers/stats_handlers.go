package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nmafoods/api/models"
	"nmafoods/api/store"
	"nmafoods/api/utils"
)

// AnalyticsReader is the ClickHouse side of the stats API.
type AnalyticsReader interface {
	EventCountsOverTime(ctx context.Context, interval string, start, end time.Time, eventName string) ([]store.EventCountByTime, error)
	UniqueUsersOverTime(ctx context.Context, interval string, start, end time.Time) ([]store.EventCountByTime, error)
	AverageCustomParameter(ctx context.Context, eventName, param string, start, end time.Time) (float64, error)
	TopPagePaths(ctx context.Context, start, end time.Time, limit uint64) ([]models.TopPathResult, error)
	TopEvents(ctx context.Context, start, end time.Time, limit uint64) ([]store.EventCount, error)
	ConversionFunnel(ctx context.Context, start, end time.Time) ([]models.FunnelStep, error)
	PerformanceInsights(ctx context.Context, start, end time.Time, pagePath string) ([]models.PerformanceInsight, error)
}

// SessionReader is the Postgres side of the stats API.
type SessionReader interface {
	AverageDuration(ctx context.Context, start, end time.Time) (float64, error)
	DeviceBreakdown(ctx context.Context, start, end time.Time) ([]models.LabeledCount, error)
	TrafficSources(ctx context.Context, start, end time.Time) ([]models.LabeledCount, error)
}

type StatsHandlers struct {
	analytics AnalyticsReader
	sessions  SessionReader
	log       zerolog.Logger
	now       func() time.Time
}

func NewStatsHandlers(a AnalyticsReader, s SessionReader, log zerolog.Logger) *StatsHandlers {
	return &StatsHandlers{analytics: a, sessions: s, log: log, now: time.Now}
}

const statsTimeout = 15 * time.Second

// stats wraps a query with time range parsing, a timeout and error mapping.
func (h *StatsHandlers) stats(name string, query func(ctx context.Context, c *gin.Context, start, end time.Time) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, end, err := parseTimeRange(c, h.now().UTC())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
		defer cancel()

		out, err := query(ctx, c, start, end)
		if err != nil {
			var ve validationError
			if errors.As(err, &ve) {
				c.JSON(http.StatusBadRequest, gin.H{"error": string(ve)})
				return
			}
			h.log.Error().Err(err).Str("stat", name).Msg("stats query failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve " + name})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

type validationError string

const errInvalidInterval = validationError("Invalid interval. Use Minute, Hour, Day, Week, Month, Quarter or Year")

func (e validationError) Error() string { return string(e) }

func (h *StatsHandlers) EventCounts() gin.HandlerFunc {
	return h.stats("event counts", func(ctx context.Context, c *gin.Context, start, end time.Time) (any, error) {
		interval := c.DefaultQuery("interval", "Day")
		if !utils.IsValidInterval(interval) {
			return nil, errInvalidInterval
		}
		res, err := h.analytics.EventCountsOverTime(ctx, interval, start, end, c.Query("eventName"))
		return orEmpty(res), err
	})
}

func (h *StatsHandlers) UniqueUsers() gin.HandlerFunc {
	return h.stats("unique users", func(ctx context.Context, c *gin.Context, start, end time.Time) (any, error) {
		interval := c.DefaultQuery("interval", "Day")
		if !utils.IsValidInterval(interval) {
			return nil, errInvalidInterval
		}
		res, err := h.analytics.UniqueUsersOverTime(ctx, interval, start, end)
		return orEmpty(res), err
	})
}

func (h *StatsHandlers) AverageCustomParam() gin.HandlerFunc {
	return h.stats("average custom parameter", func(ctx context.Context, c *gin.Context, start, end time.Time) (any, error) {
		eventName, param := c.Query("eventName"), c.Query("paramName")
		if eventName == "" || param == "" {
			return nil, validationError("eventName and paramName are required")
		}
		avg, err := h.analytics.AverageCustomParameter(ctx, eventName, param, start, end)
		return gin.H{"eventName": eventName, "paramName": param, "average": avg}, err
	})
}

func (h *StatsHandlers) TopPaths() gin.HandlerFunc {
	return h.stats("top paths", func(ctx context.Context, c *gin.Context, start, end time.Time) (any, error) {
		res, err := h.analytics.TopPagePaths(ctx, start, end, uint64(queryInt(c, "limit", 10)))
		return orEmpty(res), err
	})
}

func (h *StatsHandlers) TopEvents() gin.HandlerFunc {
	return h.stats("top events", func(ctx context.Context, c *gin.Context, start, end time.Time) (any, error) {
		res, err := h.analytics.TopEvents(ctx, start, end, uint64(queryInt(c, "limit", 10)))
		return orEmpty(res), err
	})
}

func (h *StatsHandlers) Funnel() gin.HandlerFunc {
	return h.stats("conversion funnel", func(ctx context.Context, c *gin.Context, start, end time.Time) (any, error) {
		res, err := h.analytics.ConversionFunnel(ctx, start, end)
		return orEmpty(res), err
	})
}

func (h *StatsHandlers) Performance() gin.HandlerFunc {
	return h.stats("performance insights", func(ctx context.Context, c *gin.Context, start, end time.Time) (any, error) {
		res, err := h.analytics.PerformanceInsights(ctx, start, end, c.Query("pagePath"))
		return orEmpty(res), err
	})
}

func (h *StatsHandlers) SessionDuration() gin.HandlerFunc {
	return h.stats("session duration", func(ctx context.Context, c *gin.Context, start, end time.Time) (any, error) {
		avg, err := h.sessions.AverageDuration(ctx, start, end)
		return gin.H{"averageSessionDuration": avg}, err
	})
}

func (h *StatsHandlers) Devices() gin.HandlerFunc {
	return h.stats("device breakdown", func(ctx context.Context, c *gin.Context, start, end time.Time) (any, error) {
		res, err := h.sessions.DeviceBreakdown(ctx, start, end)
		return orEmpty(res), err
	})
}

func (h *StatsHandlers) TrafficSources() gin.HandlerFunc {
	return h.stats("traffic sources", func(ctx context.Context, c *gin.Context, start, end time.Time) (any, error) {
		res, err := h.sessions.TrafficSources(ctx, start, end)
		return orEmpty(res), err
	})
}

// orEmpty keeps JSON responses as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
