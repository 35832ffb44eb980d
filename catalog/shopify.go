package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nmafoods/api/config"
	"nmafoods/api/models"
)

const productsQuery = `
query getProducts($first: Int!) {
  products(first: $first) {
    edges { node { ...ProductFields } }
  }
}
` + productFields

const productByHandleQuery = `
query getProductByHandle($handle: String!) {
  productByHandle(handle: $handle) { ...ProductFields }
}
` + productFields

const collectionsQuery = `
query getCollections($first: Int!) {
  collections(first: $first) {
    edges {
      node {
        id title handle description
        image { id url altText }
        products(first: 10) { edges { node { ...ProductFields } } }
      }
    }
  }
}
` + productFields

const productFields = `
fragment ProductFields on Product {
  id title handle description productType vendor tags
  images(first: 5) { edges { node { id url altText } } }
  variants(first: 5) {
    edges {
      node {
        id title availableForSale quantityAvailable
        price { amount currencyCode }
        compareAtPrice { amount currencyCode }
      }
    }
  }
}
`

// Shopify is a minimal Storefront API GraphQL client.
type Shopify struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewShopify(cfg config.ShopifyConfig, client *http.Client) *Shopify {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	domain := strings.TrimSuffix(strings.TrimPrefix(cfg.StoreDomain, "https://"), "/")
	return &Shopify{
		endpoint: fmt.Sprintf("https://%s/api/%s/graphql.json", domain, cfg.APIVersion),
		token:    cfg.AccessToken,
		client:   client,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func (s *Shopify) do(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("shopify: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("shopify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Storefront-Access-Token", s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("shopify: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("shopify: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("shopify: unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("shopify: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("shopify: graphql: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("shopify: decode data: %w", err)
	}
	return nil
}

// Wire shapes. Storefront lists come wrapped in edges/node.

type edges[T any] struct {
	Edges []struct {
		Node T `json:"node"`
	} `json:"edges"`
}

func (e edges[T]) nodes() []T {
	out := make([]T, 0, len(e.Edges))
	for _, edge := range e.Edges {
		out = append(out, edge.Node)
	}
	return out
}

type productNode struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Handle      string                `json:"handle"`
	Description string                `json:"description"`
	ProductType string                `json:"productType"`
	Vendor      string                `json:"vendor"`
	Tags        []string              `json:"tags"`
	Images      edges[models.Image]   `json:"images"`
	Variants    edges[models.Variant] `json:"variants"`
}

func (p productNode) toModel() models.Product {
	return models.Product{
		ID:          p.ID,
		Title:       p.Title,
		Handle:      p.Handle,
		Description: p.Description,
		ProductType: p.ProductType,
		Vendor:      p.Vendor,
		Tags:        p.Tags,
		Images:      p.Images.nodes(),
		Variants:    p.Variants.nodes(),
	}
}

type collectionNode struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Handle      string             `json:"handle"`
	Description string             `json:"description"`
	Image       *models.Image      `json:"image"`
	Products    edges[productNode] `json:"products"`
}

func toProducts(nodes []productNode) []models.Product {
	out := make([]models.Product, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.toModel())
	}
	return out
}

func (s *Shopify) Products(ctx context.Context, first int) ([]models.Product, error) {
	var data struct {
		Products edges[productNode] `json:"products"`
	}
	if err := s.do(ctx, productsQuery, map[string]any{"first": first}, &data); err != nil {
		return nil, err
	}
	return toProducts(data.Products.nodes()), nil
}

// ProductByHandle returns nil without error when no product has handle.
func (s *Shopify) ProductByHandle(ctx context.Context, handle string) (*models.Product, error) {
	var data struct {
		ProductByHandle *productNode `json:"productByHandle"`
	}
	if err := s.do(ctx, productByHandleQuery, map[string]any{"handle": handle}, &data); err != nil {
		return nil, err
	}
	if data.ProductByHandle == nil {
		return nil, nil
	}
	p := data.ProductByHandle.toModel()
	return &p, nil
}

func (s *Shopify) Collections(ctx context.Context, first int) ([]models.Collection, error) {
	var data struct {
		Collections edges[collectionNode] `json:"collections"`
	}
	if err := s.do(ctx, collectionsQuery, map[string]any{"first": first}, &data); err != nil {
		return nil, err
	}
	nodes := data.Collections.nodes()
	out := make([]models.Collection, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, models.Collection{
			ID:          n.ID,
			Title:       n.Title,
			Handle:      n.Handle,
			Description: n.Description,
			Image:       n.Image,
			Products:    toProducts(n.Products.nodes()),
		})
	}
	return out, nil
}
