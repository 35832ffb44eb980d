package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nmafoods/api/sitemap"
)

// Sitemap serves /sitemap.xml.
func Sitemap(gen *sitemap.Generator, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var buf bytes.Buffer
		if err := sitemap.Write(&buf, gen.Build(c.Request.Context())); err != nil {
			log.Error().Err(err).Msg("sitemap encoding failed")
			c.String(http.StatusInternalServerError, "Failed to generate sitemap")
			return
		}
		c.Header("Cache-Control", "public, max-age=3600")
		c.Data(http.StatusOK, "application/xml; charset=utf-8", buf.Bytes())
	}
}
