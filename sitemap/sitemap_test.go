package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmafoods/api/models"
)

type stubPages struct {
	seo      []models.SEOPage
	articles []models.BlogArticle
	err      error
}

func (s stubPages) SEOPages(context.Context) ([]models.SEOPage, error) { return s.seo, s.err }

func (s stubPages) PublishedArticles(context.Context) ([]models.BlogArticle, error) {
	return s.articles, s.err
}

type stubProducts []string

func (s stubProducts) Products(context.Context, int) []models.Product {
	out := make([]models.Product, 0, len(s))
	for _, h := range s {
		out = append(out, models.Product{Handle: h})
	}
	return out
}

func fixedNow() time.Time { return time.Date(2024, 10, 29, 14, 0, 0, 0, time.UTC) }

func locs(set URLSet) []string {
	out := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		out = append(out, u.Loc)
	}
	return out
}

func TestBuild_Order(t *testing.T) {
	prio := 0.7
	pages := stubPages{
		seo: []models.SEOPage{
			{PagePath: "/shop", UpdatedAt: fixedNow()},
			{PagePath: "/wholesale", Priority: &prio, UpdatedAt: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)},
			{PagePath: "/faq", UpdatedAt: fixedNow()},
		},
		articles: []models.BlogArticle{{Slug: "why-turmeric", UpdatedAt: fixedNow()}},
	}
	g := NewGenerator("https://nmafoods.com/", pages, stubProducts{"suya-spice"}, zerolog.Nop())
	g.now = fixedNow

	set := g.Build(context.Background())
	assert.Equal(t, []string{
		"https://nmafoods.com/",
		"https://nmafoods.com/shop",
		"https://nmafoods.com/safety",
		"https://nmafoods.com/recipes",
		"https://nmafoods.com/story",
		"https://nmafoods.com/blog",
		"https://nmafoods.com/wholesale",
		"https://nmafoods.com/faq",
		"https://nmafoods.com/blog/why-turmeric",
		"https://nmafoods.com/product/suya-spice",
		"https://nmafoods.com/category/single-spices",
		"https://nmafoods.com/category/spice-blends",
		"https://nmafoods.com/category/wellness-spices",
		"https://nmafoods.com/category/cooking-essentials",
	}, locs(set))

	wholesale := set.URLs[6]
	assert.Equal(t, "2024-09-01", wholesale.LastMod)
	assert.Equal(t, "0.7", wholesale.Priority)
	assert.Equal(t, "weekly", wholesale.ChangeFreq)
	assert.Equal(t, "0.5", set.URLs[7].Priority)
	assert.Equal(t, "2024-10-29", set.URLs[0].LastMod)
}

func TestBuild_SourceErrorsAreSkipped(t *testing.T) {
	g := NewGenerator("https://nmafoods.com", stubPages{err: errors.New("db down")}, nil, zerolog.Nop())

	set := g.Build(context.Background())
	assert.Len(t, set.URLs, len(staticPages)+len(Categories))
}

func TestWrite(t *testing.T) {
	set := URLSet{Xmlns: xmlns, URLs: []URL{{Loc: "https://nmafoods.com/", Priority: "1.0"}}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, set))
	out := buf.String()
	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, out, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	assert.Contains(t, out, `<loc>https://nmafoods.com/</loc>`)
	assert.NotContains(t, out, "<lastmod>")

	var back URLSet
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &back))
	assert.Len(t, back.URLs, 1)
}
