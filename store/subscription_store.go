package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"nmafoods/api/models"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Subscribe upserts on email. An existing row is re-subscribed with the new
// type and preferences.
func (s *SubscriptionStore) Subscribe(ctx context.Context, req models.SubscribeRequest, userID *int) (*models.Subscription, error) {
	kind := req.SubscriptionType
	if kind == "" {
		kind = models.SubscriptionNewsletter
	}
	prefs := req.Preferences
	if prefs == nil {
		prefs = map[string]string{}
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}

	query := `
		INSERT INTO email_subscriptions (email, user_id, subscribed, subscription_type, preferences)
		VALUES ($1, $2, true, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET user_id = COALESCE(EXCLUDED.user_id, email_subscriptions.user_id),
			subscribed = true,
			subscription_type = EXCLUDED.subscription_type,
			preferences = EXCLUDED.preferences,
			updated_at = now()
		RETURNING email, user_id, subscribed, subscription_type, created_at, updated_at;
	`
	sub := &models.Subscription{Preferences: prefs}
	var uid sql.NullInt64
	var arg any
	if userID != nil {
		arg = *userID
	}
	err = s.db.QueryRowContext(ctx, query, req.Email, arg, kind, raw).Scan(
		&sub.Email, &uid, &sub.Subscribed, &sub.SubscriptionType, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	if uid.Valid {
		id := int(uid.Int64)
		sub.UserID = &id
	}
	return sub, nil
}

func (s *SubscriptionStore) Unsubscribe(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_subscriptions SET subscribed = false, updated_at = now() WHERE email = $1;
	`, email)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SubscribedEmails lists active subscribers of any of types.
func (s *SubscriptionStore) SubscribedEmails(ctx context.Context, types []string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email FROM email_subscriptions
		WHERE subscribed = true AND subscription_type = ANY($1)
		ORDER BY email;
	`, pq.Array(types))
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
