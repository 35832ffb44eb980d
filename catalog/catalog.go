// Package catalog serves products and collections from the Shopify
// Storefront API, falling back to a built-in catalog when the API is not
// configured or a call fails.
package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"nmafoods/api/models"
)

var ErrProductNotFound = errors.New("catalog: product not found")

const (
	DefaultProductLimit    = 20
	DefaultCollectionLimit = 10
)

// Source is a remote catalog.
type Source interface {
	Products(ctx context.Context, first int) ([]models.Product, error)
	ProductByHandle(ctx context.Context, handle string) (*models.Product, error)
	Collections(ctx context.Context, first int) ([]models.Collection, error)
}

type Catalog struct {
	source Source
	log    zerolog.Logger
}

// New returns a Catalog backed by source. A nil source serves the built-in
// catalog only.
func New(source Source, log zerolog.Logger) *Catalog {
	return &Catalog{source: source, log: log}
}

func (c *Catalog) Products(ctx context.Context, first int) []models.Product {
	if first <= 0 {
		first = DefaultProductLimit
	}
	if c.source == nil {
		return mockProducts()
	}
	products, err := c.source.Products(ctx, first)
	if err != nil {
		c.log.Warn().Err(err).Msg("fetch products failed, serving built-in catalog")
		return mockProducts()
	}
	return products
}

func (c *Catalog) ProductByHandle(ctx context.Context, handle string) (*models.Product, error) {
	if c.source != nil {
		p, err := c.source.ProductByHandle(ctx, handle)
		if err == nil {
			if p == nil {
				return nil, ErrProductNotFound
			}
			return p, nil
		}
		c.log.Warn().Err(err).Str("handle", handle).Msg("fetch product failed, serving built-in catalog")
	}
	for _, p := range mockProducts() {
		if p.Handle == handle {
			return &p, nil
		}
	}
	return nil, ErrProductNotFound
}

func (c *Catalog) Collections(ctx context.Context, first int) []models.Collection {
	if first <= 0 {
		first = DefaultCollectionLimit
	}
	if c.source == nil {
		return mockCollections()
	}
	collections, err := c.source.Collections(ctx, first)
	if err != nil {
		c.log.Warn().Err(err).Msg("fetch collections failed, serving built-in catalog")
		return mockCollections()
	}
	return collections
}

// Search matches term case-insensitively against title, description,
// product type and tags.
func (c *Catalog) Search(ctx context.Context, term string) []models.Product {
	term = strings.ToLower(strings.TrimSpace(term))
	products := c.Products(ctx, DefaultProductLimit)
	if term == "" {
		return products
	}

	var out []models.Product
	for _, p := range products {
		if matches(p, term) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p models.Product, term string) bool {
	if strings.Contains(strings.ToLower(p.Title), term) ||
		strings.Contains(strings.ToLower(p.Description), term) ||
		strings.Contains(strings.ToLower(p.ProductType), term) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// Price returns the first variant's price as a float, or 0.
func Price(p models.Product) float64 {
	if len(p.Variants) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(p.Variants[0].Price.Amount, 64)
	if err != nil {
		return 0
	}
	return v
}
