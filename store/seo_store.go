package store

import (
	"context"
	"database/sql"
	"fmt"

	"nmafoods/api/models"
)

// SEOStore reads the database-managed sitemap sources.
type SEOStore struct {
	db *sql.DB
}

func NewSEOStore(db *sql.DB) *SEOStore {
	return &SEOStore{db: db}
}

func (s *SEOStore) SEOPages(ctx context.Context) ([]models.SEOPage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT page_path, priority, change_frequency, updated_at
		FROM seo_metadata
		ORDER BY page_path;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query seo metadata: %w", err)
	}
	defer rows.Close()

	var pages []models.SEOPage
	for rows.Next() {
		var (
			p        models.SEOPage
			priority sql.NullFloat64
			freq     sql.NullString
		)
		if err := rows.Scan(&p.PagePath, &priority, &freq, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan seo metadata: %w", err)
		}
		if priority.Valid {
			p.Priority = &priority.Float64
		}
		p.ChangeFrequency = freq.String
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *SEOStore) PublishedArticles(ctx context.Context) ([]models.BlogArticle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slug, updated_at, published_at
		FROM blog_articles
		WHERE status = 'published' AND published_at IS NOT NULL
		ORDER BY published_at DESC;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query blog articles: %w", err)
	}
	defer rows.Close()

	var articles []models.BlogArticle
	for rows.Next() {
		var a models.BlogArticle
		if err := rows.Scan(&a.Slug, &a.UpdatedAt, &a.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan blog article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
