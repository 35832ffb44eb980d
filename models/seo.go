package models

import "time"

// SEOPage is a database-managed path that belongs in the sitemap.
type SEOPage struct {
	PagePath        string
	Priority        *float64
	ChangeFrequency string
	UpdatedAt       time.Time
}

type BlogArticle struct {
	Slug        string
	UpdatedAt   time.Time
	PublishedAt time.Time
}
