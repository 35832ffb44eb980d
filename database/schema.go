package database

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSchema creates the relational tables.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		hashed_password BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT,
		entry_page TEXT NOT NULL DEFAULT '',
		exit_page TEXT,
		referrer TEXT,
		device_type TEXT NOT NULL DEFAULT '',
		browser TEXT NOT NULL DEFAULT '',
		os TEXT NOT NULL DEFAULT '',
		user_agent TEXT,
		utm_source TEXT,
		utm_medium TEXT,
		utm_campaign TEXT,
		utm_term TEXT,
		utm_content TEXT,
		start_time TIMESTAMPTZ NOT NULL DEFAULT now(),
		end_time TIMESTAMPTZ,
		duration_seconds BIGINT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS product_reviews (
		id BIGSERIAL PRIMARY KEY,
		product_handle TEXT NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id),
		rating SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
		title TEXT NOT NULL DEFAULT '',
		review_text TEXT NOT NULL,
		verified_purchase BOOLEAN NOT NULL DEFAULT false,
		helpful_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_reviews_handle ON product_reviews (product_handle)`,
	`CREATE TABLE IF NOT EXISTS recipes (
		id BIGSERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		ingredients TEXT[] NOT NULL,
		instructions TEXT NOT NULL,
		prep_time_minutes INTEGER NOT NULL DEFAULT 0,
		cook_time_minutes INTEGER NOT NULL DEFAULT 0,
		servings INTEGER NOT NULL DEFAULT 0,
		difficulty TEXT NOT NULL DEFAULT 'easy',
		spices_used TEXT[] NOT NULL DEFAULT '{}',
		image_url TEXT NOT NULL DEFAULT '',
		featured BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_content (
		id BIGSERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		content_type TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		approved BOOLEAN NOT NULL DEFAULT false,
		featured BOOLEAN NOT NULL DEFAULT false,
		likes INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS email_subscriptions (
		email TEXT PRIMARY KEY,
		user_id INTEGER REFERENCES users(id),
		subscribed BOOLEAN NOT NULL DEFAULT true,
		subscription_type TEXT NOT NULL DEFAULT 'newsletter',
		preferences JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS seo_metadata (
		page_path TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		priority NUMERIC(2,1),
		change_frequency TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS blog_articles (
		slug TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		published_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// ClickHouseSchema creates the analytics tables.
var ClickHouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS analytics_events (
		event_id String,
		event_name LowCardinality(String),
		event_category LowCardinality(String),
		event_action String,
		event_label String,
		event_value Nullable(Float64),
		user_id String,
		session_id String,
		timestamp DateTime64(3, 'UTC'),
		page_path String,
		page_title String,
		referrer String,
		user_agent String,
		ip_address String,
		device_type LowCardinality(String),
		browser LowCardinality(String),
		os LowCardinality(String),
		location String,
		utm_source String,
		utm_medium String,
		utm_campaign String,
		utm_term String,
		utm_content String,
		custom_parameters String
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (event_name, timestamp)`,
	`CREATE TABLE IF NOT EXISTS conversion_events (
		conversion_id String,
		user_id String,
		session_id String,
		conversion_type LowCardinality(String),
		conversion_value Nullable(Float64),
		currency LowCardinality(String),
		product_id String,
		product_name String,
		product_category String,
		quantity UInt32,
		transaction_id String,
		payment_method String,
		shipping_method String,
		coupon_code String,
		funnel_step UInt8,
		timestamp DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (conversion_type, timestamp)`,
	`CREATE TABLE IF NOT EXISTS performance_metrics (
		metric_id String,
		session_id String,
		page_path String,
		page_title String,
		metric_type LowCardinality(String),
		metric_name LowCardinality(String),
		metric_value Float64,
		metric_unit LowCardinality(String),
		device_type LowCardinality(String),
		connection_type LowCardinality(String),
		browser LowCardinality(String),
		os LowCardinality(String),
		viewport_width UInt32,
		viewport_height UInt32,
		additional_data String,
		timestamp DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (metric_type, metric_name, timestamp)`,
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// EnsurePostgresSchema runs PostgresSchema in order.
func EnsurePostgresSchema(ctx context.Context, db Execer) error {
	for i, stmt := range PostgresSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema statement %d: %w", i, err)
		}
	}
	return nil
}

// EnsureSchema runs ClickHouseSchema in order.
func (c *ClickHouseClient) EnsureSchema(ctx context.Context) error {
	for i, stmt := range ClickHouseSchema {
		if err := c.Conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("clickhouse schema statement %d: %w", i, err)
		}
	}
	return nil
}
