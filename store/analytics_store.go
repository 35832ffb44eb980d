package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"

	"nmafoods/api/models"
	"nmafoods/api/perf"
	"nmafoods/api/utils"
)

// AnalyticsStore writes and aggregates the ClickHouse telemetry tables.
type AnalyticsStore struct {
	conn driver.Conn
	log  zerolog.Logger
}

type EventCountByTime struct {
	Time      time.Time `json:"time"`
	EventName *string   `json:"eventName,omitempty"`
	Count     uint64    `json:"count"`
}

type EventCount struct {
	EventName string `json:"eventName"`
	Count     uint64 `json:"count"`
}

func NewAnalyticsStore(conn driver.Conn, log zerolog.Logger) *AnalyticsStore {
	return &AnalyticsStore{conn: conn, log: log}
}

const insertEventsQuery = `
	INSERT INTO analytics_events (
		event_id, event_name, event_category, event_action, event_label, event_value,
		user_id, session_id, timestamp, page_path, page_title, referrer, user_agent,
		ip_address, device_type, browser, os, location,
		utm_source, utm_medium, utm_campaign, utm_term, utm_content, custom_parameters
	)`

const insertConversionsQuery = `
	INSERT INTO conversion_events (
		conversion_id, user_id, session_id, conversion_type, conversion_value, currency,
		product_id, product_name, product_category, quantity, transaction_id,
		payment_method, shipping_method, coupon_code, funnel_step, timestamp
	)`

const insertPerformanceQuery = `
	INSERT INTO performance_metrics (
		metric_id, session_id, page_path, page_title, metric_type, metric_name,
		metric_value, metric_unit, device_type, connection_type, browser, os,
		viewport_width, viewport_height, additional_data, timestamp
	)`

// InsertEvents batch-inserts events. A record that fails to append is logged
// and skipped so one bad row cannot keep the whole batch in retry.
func (s *AnalyticsStore) InsertEvents(ctx context.Context, events []models.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, insertEventsQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare event batch: %w", err)
	}
	for _, e := range events {
		err := batch.Append(
			e.EventID, e.EventName, e.EventCategory, e.EventAction, e.EventLabel, e.EventValue,
			e.UserID, e.SessionID, e.Timestamp, e.PagePath, e.PageTitle, e.Referrer, e.UserAgent,
			e.IPAddress, e.DeviceType, e.Browser, e.OS, e.Location,
			e.UTM.Source, e.UTM.Medium, e.UTM.Campaign, e.UTM.Term, e.UTM.Content,
			jsonObject(e.CustomParameters),
		)
		if err != nil {
			s.log.Error().Err(err).Str("event_id", e.EventID).Msg("appending event to batch")
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send event batch: %w", err)
	}
	s.log.Debug().Int("count", len(events)).Msg("inserted analytics events")
	return nil
}

func (s *AnalyticsStore) InsertConversions(ctx context.Context, conversions []models.Conversion) error {
	if len(conversions) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, insertConversionsQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare conversion batch: %w", err)
	}
	for _, c := range conversions {
		err := batch.Append(
			c.ConversionID, c.UserID, c.SessionID, string(c.ConversionType), c.ConversionValue, c.Currency,
			c.ProductID, c.ProductName, c.ProductCategory, uint32(max(c.Quantity, 0)), c.TransactionID,
			c.PaymentMethod, c.ShippingMethod, c.CouponCode, uint8(min(max(c.FunnelStep, 0), math.MaxUint8)), c.Timestamp,
		)
		if err != nil {
			s.log.Error().Err(err).Str("conversion_id", c.ConversionID).Msg("appending conversion to batch")
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send conversion batch: %w", err)
	}
	s.log.Debug().Int("count", len(conversions)).Msg("inserted conversions")
	return nil
}

func (s *AnalyticsStore) InsertPerformance(ctx context.Context, metrics []models.PerformanceMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, insertPerformanceQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare performance batch: %w", err)
	}
	for _, m := range metrics {
		err := batch.Append(
			m.MetricID, m.SessionID, m.PagePath, m.PageTitle, m.MetricType, m.MetricName,
			m.MetricValue, m.MetricUnit, m.DeviceType, m.ConnectionType, m.Browser, m.OS,
			uint32(max(m.ViewportWidth, 0)), uint32(max(m.ViewportHeight, 0)), jsonObject(m.AdditionalData), m.Timestamp,
		)
		if err != nil {
			s.log.Error().Err(err).Str("metric_id", m.MetricID).Msg("appending metric to batch")
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send performance batch: %w", err)
	}
	s.log.Debug().Int("count", len(metrics)).Msg("inserted performance metrics")
	return nil
}

func jsonObject(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func eventCountsQuery(interval, eventName string) (string, []any, error) {
	if !utils.IsValidInterval(interval) {
		return "", nil, fmt.Errorf("invalid interval: %s", interval)
	}
	selectCols := fmt.Sprintf("toStartOf%s(timestamp) AS time_bucket, count() AS total_events", interval)
	groupBy := "time_bucket"
	where := "WHERE timestamp >= ? AND timestamp <= ?"
	orderBy := "time_bucket ASC"
	var args []any
	if eventName != "" {
		selectCols += ", event_name"
		groupBy += ", event_name"
		where += " AND event_name = ?"
		orderBy += ", event_name ASC"
		args = append(args, eventName)
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM analytics_events
		%s
		GROUP BY %s
		ORDER BY %s
	`, selectCols, where, groupBy, orderBy)
	return query, args, nil
}

func (s *AnalyticsStore) EventCountsOverTime(ctx context.Context, interval string, start, end time.Time, eventName string) ([]EventCountByTime, error) {
	query, extra, err := eventCountsQuery(interval, eventName)
	if err != nil {
		return nil, err
	}
	args := append([]any{start, end}, extra...)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event counts over time: %w", err)
	}
	defer rows.Close()

	var results []EventCountByTime
	for rows.Next() {
		var r EventCountByTime
		if eventName != "" {
			var name string
			if err := rows.Scan(&r.Time, &r.Count, &name); err != nil {
				return nil, fmt.Errorf("scan event counts: %w", err)
			}
			r.EventName = &name
		} else if err := rows.Scan(&r.Time, &r.Count); err != nil {
			return nil, fmt.Errorf("scan event counts: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event counts query: %w", err)
	}
	return results, nil
}

func (s *AnalyticsStore) UniqueUsersOverTime(ctx context.Context, interval string, start, end time.Time) ([]EventCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}
	// Anonymous visitors are counted by session.
	query := fmt.Sprintf(`
		SELECT toStartOf%s(timestamp) AS time_bucket, uniq(if(user_id = '', session_id, user_id)) AS unique_users
		FROM analytics_events
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval)

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique users over time: %w", err)
	}
	defer rows.Close()

	var results []EventCountByTime
	for rows.Next() {
		var r EventCountByTime
		if err := rows.Scan(&r.Time, &r.Count); err != nil {
			return nil, fmt.Errorf("scan unique users: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for unique users: %w", err)
	}
	return results, nil
}

func (s *AnalyticsStore) AverageCustomParameter(ctx context.Context, eventName, param string, start, end time.Time) (float64, error) {
	if param == "" {
		return 0, fmt.Errorf("parameter name for average calculation cannot be empty")
	}
	query := `
		SELECT avg(JSONExtractFloat(custom_parameters, ?))
		FROM analytics_events
		WHERE event_name = ? AND timestamp >= ? AND timestamp <= ?
	`
	var avg float64
	if err := s.conn.QueryRow(ctx, query, param, eventName, start, end).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to query average of custom parameter %q: %w", param, err)
	}
	// avg() over no rows is NaN, which JSON cannot carry.
	if math.IsNaN(avg) {
		return 0, nil
	}
	return avg, nil
}

func (s *AnalyticsStore) TopPagePaths(ctx context.Context, start, end time.Time, limit uint64) ([]models.TopPathResult, error) {
	if limit == 0 {
		limit = 10
	}
	query := `
		SELECT page_path, count() AS view_count
		FROM analytics_events
		WHERE event_name = 'page_view' AND timestamp >= ? AND timestamp <= ?
		GROUP BY page_path
		ORDER BY view_count DESC
		LIMIT ?
	`
	rows, err := s.conn.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top page paths: %w", err)
	}
	defer rows.Close()

	var results []models.TopPathResult
	for rows.Next() {
		var r models.TopPathResult
		if err := rows.Scan(&r.PagePath, &r.Count); err != nil {
			return nil, fmt.Errorf("scan top page paths: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for top page paths: %w", err)
	}
	return results, nil
}

func (s *AnalyticsStore) TopEvents(ctx context.Context, start, end time.Time, limit uint64) ([]EventCount, error) {
	if limit == 0 {
		limit = 10
	}
	query := `
		SELECT event_name, count() AS total
		FROM analytics_events
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY event_name
		ORDER BY total DESC
		LIMIT ?
	`
	rows, err := s.conn.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top events: %w", err)
	}
	defer rows.Close()

	var results []EventCount
	for rows.Next() {
		var r EventCount
		if err := rows.Scan(&r.EventName, &r.Count); err != nil {
			return nil, fmt.Errorf("scan top events: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ConversionFunnel counts each funnel stage in FunnelOrder.
func (s *AnalyticsStore) ConversionFunnel(ctx context.Context, start, end time.Time) ([]models.FunnelStep, error) {
	query := `
		SELECT conversion_type, count() AS total
		FROM conversion_events
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY conversion_type
	`
	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversion funnel: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ConversionType]uint64)
	for rows.Next() {
		var (
			kind  string
			total uint64
		)
		if err := rows.Scan(&kind, &total); err != nil {
			return nil, fmt.Errorf("scan conversion funnel: %w", err)
		}
		counts[models.ConversionType(kind)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for conversion funnel: %w", err)
	}
	return BuildFunnel(counts), nil
}

// BuildFunnel orders counts by FunnelOrder. Each rate is a percentage of the
// first stage.
func BuildFunnel(counts map[models.ConversionType]uint64) []models.FunnelStep {
	steps := make([]models.FunnelStep, len(models.FunnelOrder))
	top := counts[models.FunnelOrder[0]]
	for i, kind := range models.FunnelOrder {
		steps[i] = models.FunnelStep{Step: kind, Count: counts[kind]}
		if top > 0 {
			steps[i].Rate = float64(counts[kind]) / float64(top) * 100
		}
	}
	return steps
}

// PerformanceInsights summarizes every metric in the range and checks the
// headline ones against their budgets.
func (s *AnalyticsStore) PerformanceInsights(ctx context.Context, start, end time.Time, pagePath string) ([]models.PerformanceInsight, error) {
	query, args := performanceInsightsQuery(start, end, pagePath)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance insights: %w", err)
	}
	defer rows.Close()

	var results []models.PerformanceInsight
	for rows.Next() {
		var in models.PerformanceInsight
		if err := rows.Scan(&in.MetricType, &in.MetricName, &in.Unit, &in.Count, &in.Average, &in.Median, &in.P95); err != nil {
			return nil, fmt.Errorf("scan performance insights: %w", err)
		}
		perf.ApplyBudget(&in)
		results = append(results, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for performance insights: %w", err)
	}
	return results, nil
}

func performanceInsightsQuery(start, end time.Time, pagePath string) (string, []any) {
	where := "WHERE timestamp >= ? AND timestamp <= ?"
	args := []any{start, end}
	if pagePath != "" {
		where += " AND page_path = ?"
		args = append(args, pagePath)
	}
	return fmt.Sprintf(`
		SELECT metric_type, metric_name, any(metric_unit) AS unit, count() AS samples,
			avg(metric_value) AS average,
			quantile(0.5)(metric_value) AS median,
			quantile(0.95)(metric_value) AS p95
		FROM performance_metrics
		%s
		GROUP BY metric_type, metric_name
		ORDER BY metric_type ASC, metric_name ASC
	`, where), args
}
