package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nmafoods/api/catalog"
	"nmafoods/api/tracker"
)

// CatalogTracker records catalog browsing.
type CatalogTracker interface {
	ViewItem(v tracker.Visit, productID, productName, category string, value float64) error
	Search(v tracker.Visit, term string, results int) error
}

type CatalogHandlers struct {
	catalog *catalog.Catalog
	tracker CatalogTracker
	visitor Visitor
	log     zerolog.Logger
}

func NewCatalogHandlers(cat *catalog.Catalog, t CatalogTracker, v Visitor, log zerolog.Logger) *CatalogHandlers {
	return &CatalogHandlers{catalog: cat, tracker: t, visitor: v, log: log}
}

func (h *CatalogHandlers) Products(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Products(c.Request.Context(), queryInt(c, "first", 20)))
}

// Product serves one product and records the view as a view_product
// conversion.
func (h *CatalogHandlers) Product(c *gin.Context) {
	handle := c.Param("handle")
	p, err := h.catalog.ProductByHandle(c.Request.Context(), handle)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		h.log.Error().Err(err).Str("handle", handle).Msg("product lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load product"})
		return
	}

	v, _, _ := h.visitor.Visit(c, PageContext{PagePath: "/product/" + p.Handle, PageTitle: p.Title})
	if err := h.tracker.ViewItem(v, p.ID, p.Title, p.ProductType, catalog.Price(*p)); err != nil {
		h.log.Warn().Err(err).Str("handle", handle).Msg("product view not tracked")
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandlers) Collections(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Collections(c.Request.Context(), queryInt(c, "first", 10)))
}

func (h *CatalogHandlers) Search(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter q is required"})
		return
	}
	results := h.catalog.Search(c.Request.Context(), term)

	v, _, _ := h.visitor.Visit(c, PageContext{PagePath: "/shop", PageURL: c.Request.URL.String()})
	if err := h.tracker.Search(v, term, len(results)); err != nil {
		h.log.Warn().Err(err).Msg("search not tracked")
	}
	c.JSON(http.StatusOK, gin.H{"query": term, "count": len(results), "products": orEmpty(results)})
}
