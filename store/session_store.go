package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nmafoods/api/models"
	"nmafoods/api/utils"
)

// SessionStore persists visitor sessions and reports session-level stats.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// CreateSession inserts s. A second create for the same id, e.g. from a
// racing tab, is ignored.
func (s *SessionStore) CreateSession(ctx context.Context, sess *models.Session) error {
	query := `
		INSERT INTO user_sessions (
			session_id, user_id, entry_page, referrer, device_type, browser, os, user_agent,
			utm_source, utm_medium, utm_campaign, utm_term, utm_content, start_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session_id) DO NOTHING;
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.SessionID,
		utils.NullString(sess.UserID),
		sess.EntryPage,
		utils.NullString(sess.Referrer),
		sess.DeviceType,
		sess.Browser,
		sess.OS,
		utils.NullString(sess.UserAgent),
		utils.NullString(sess.UTM.Source),
		utils.NullString(sess.UTM.Medium),
		utils.NullString(sess.UTM.Campaign),
		utils.NullString(sess.UTM.Term),
		utils.NullString(sess.UTM.Content),
		sess.StartTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// EndSession applies the unload update. ErrNotFound means the create write
// has not landed (or never will).
func (s *SessionStore) EndSession(ctx context.Context, end models.SessionEnd) error {
	query := `
		UPDATE user_sessions
		SET end_time = $2, duration_seconds = $3, exit_page = $4, updated_at = now()
		WHERE session_id = $1;
	`
	res, err := s.db.ExecContext(ctx, query, end.SessionID, end.EndTime, end.DurationSeconds, utils.NullString(end.ExitPage))
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", end.SessionID, ErrNotFound)
	}
	return nil
}

// AverageDuration is the mean duration in seconds of ended sessions that
// started within the range.
func (s *SessionStore) AverageDuration(ctx context.Context, start, end time.Time) (float64, error) {
	query := `
		SELECT COALESCE(AVG(duration_seconds), 0)
		FROM user_sessions
		WHERE start_time >= $1 AND start_time <= $2 AND duration_seconds IS NOT NULL;
	`
	var avg float64
	if err := s.db.QueryRowContext(ctx, query, start, end).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to query average session duration: %w", err)
	}
	return avg, nil
}

func (s *SessionStore) DeviceBreakdown(ctx context.Context, start, end time.Time) ([]models.LabeledCount, error) {
	return s.labeledCounts(ctx, `
		SELECT COALESCE(NULLIF(device_type, ''), 'unknown') AS label, COUNT(*) AS total
		FROM user_sessions
		WHERE start_time >= $1 AND start_time <= $2
		GROUP BY label
		ORDER BY total DESC, label ASC;
	`, start, end)
}

// TrafficSources attributes each session to its utm_source, else its
// referrer, else "direct".
func (s *SessionStore) TrafficSources(ctx context.Context, start, end time.Time) ([]models.LabeledCount, error) {
	return s.labeledCounts(ctx, `
		SELECT COALESCE(NULLIF(utm_source, ''), NULLIF(referrer, ''), 'direct') AS label, COUNT(*) AS total
		FROM user_sessions
		WHERE start_time >= $1 AND start_time <= $2
		GROUP BY label
		ORDER BY total DESC, label ASC;
	`, start, end)
}

func (s *SessionStore) labeledCounts(ctx context.Context, query string, start, end time.Time) ([]models.LabeledCount, error) {
	rows, err := s.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query session breakdown: %w", err)
	}
	defer rows.Close()

	var results []models.LabeledCount
	for rows.Next() {
		var lc models.LabeledCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, fmt.Errorf("scan session breakdown: %w", err)
		}
		results = append(results, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session breakdown: %w", err)
	}
	return withPercentages(results), nil
}

func withPercentages(in []models.LabeledCount) []models.LabeledCount {
	var total uint64
	for _, lc := range in {
		total += lc.Count
	}
	if total == 0 {
		return in
	}
	for i := range in {
		in[i].Percentage = float64(in[i].Count) / float64(total) * 100
	}
	return in
}
