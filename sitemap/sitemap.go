// Package sitemap builds the storefront's sitemap.xml from static pages,
// database-managed paths, published articles and the catalog.
package sitemap

import (
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nmafoods/api/models"
)

const xmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

type staticPage struct {
	path, priority, changefreq string
}

var staticPages = []staticPage{
	{"/", "1.0", "weekly"},
	{"/shop", "0.9", "daily"},
	{"/safety", "0.8", "monthly"},
	{"/recipes", "0.8", "weekly"},
	{"/story", "0.7", "monthly"},
	{"/blog", "0.8", "daily"},
}

// Categories are the shop's category landing pages.
var Categories = []string{
	"single-spices",
	"spice-blends",
	"wellness-spices",
	"cooking-essentials",
}

// Pages lists database-managed sitemap entries.
type Pages interface {
	SEOPages(ctx context.Context) ([]models.SEOPage, error)
	PublishedArticles(ctx context.Context) ([]models.BlogArticle, error)
}

// Products lists catalog products.
type Products interface {
	Products(ctx context.Context, first int) []models.Product
}

type Generator struct {
	baseURL  string
	pages    Pages
	products Products
	log      zerolog.Logger
	now      func() time.Time
}

func NewGenerator(baseURL string, pages Pages, products Products, log zerolog.Logger) *Generator {
	return &Generator{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		pages:    pages,
		products: products,
		log:      log,
		now:      time.Now,
	}
}

func day(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// Build assembles the URL set. Static pages come first, then stored SEO
// paths not already listed, then published articles, products and
// categories. A failing source is logged and left out.
func (g *Generator) Build(ctx context.Context) URLSet {
	today := day(g.now())
	set := URLSet{Xmlns: xmlns}

	static := make(map[string]bool, len(staticPages))
	for _, p := range staticPages {
		static[p.path] = true
		set.URLs = append(set.URLs, URL{Loc: g.baseURL + p.path, LastMod: today, ChangeFreq: p.changefreq, Priority: p.priority})
	}

	if g.pages != nil {
		seo, err := g.pages.SEOPages(ctx)
		if err != nil {
			g.log.Warn().Err(err).Msg("sitemap: seo pages unavailable")
		}
		for _, p := range seo {
			if static[p.PagePath] {
				continue
			}
			u := URL{Loc: g.baseURL + p.PagePath, LastMod: day(p.UpdatedAt), ChangeFreq: p.ChangeFrequency, Priority: "0.5"}
			if u.ChangeFreq == "" {
				u.ChangeFreq = "weekly"
			}
			if p.Priority != nil {
				u.Priority = strconv.FormatFloat(*p.Priority, 'f', 1, 64)
			}
			set.URLs = append(set.URLs, u)
		}

		articles, err := g.pages.PublishedArticles(ctx)
		if err != nil {
			g.log.Warn().Err(err).Msg("sitemap: articles unavailable")
		}
		for _, a := range articles {
			set.URLs = append(set.URLs, URL{Loc: g.baseURL + "/blog/" + a.Slug, LastMod: day(a.UpdatedAt), ChangeFreq: "monthly", Priority: "0.6"})
		}
	}

	if g.products != nil {
		for _, p := range g.products.Products(ctx, 250) {
			set.URLs = append(set.URLs, URL{Loc: g.baseURL + "/product/" + p.Handle, LastMod: today, ChangeFreq: "weekly", Priority: "0.8"})
		}
	}

	for _, c := range Categories {
		set.URLs = append(set.URLs, URL{Loc: g.baseURL + "/category/" + c, LastMod: today, ChangeFreq: "weekly", Priority: "0.7"})
	}
	return set
}

// Write encodes set as an indented sitemap document.
func Write(w io.Writer, set URLSet) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return err
	}
	return enc.Close()
}
