package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nmafoods/api/middleware"
	"nmafoods/api/models"
)

type ContentRepository interface {
	CreateReview(ctx context.Context, r *models.ProductReview) error
	ReviewSummary(ctx context.Context, handle string) (*models.ReviewSummary, error)
	CreateRecipe(ctx context.Context, r *models.Recipe) error
	ListRecipes(ctx context.Context, featuredOnly bool, limit int) ([]models.Recipe, error)
	CreateUserContent(ctx context.Context, c *models.UserContent) error
	ListUserContent(ctx context.Context, f models.ContentFilter, limit int) ([]models.UserContent, error)
}

// ContentHandlers serve reviews, recipes and community posts. Reads are
// public; writes need an authenticated user.
type ContentHandlers struct {
	content ContentRepository
	log     zerolog.Logger
}

func NewContentHandlers(content ContentRepository, log zerolog.Logger) *ContentHandlers {
	return &ContentHandlers{content: content, log: log}
}

func (h *ContentHandlers) Reviews(c *gin.Context) {
	sum, err := h.content.ReviewSummary(c.Request.Context(), c.Param("handle"))
	if err != nil {
		h.fail(c, err, "Failed to load reviews")
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *ContentHandlers) CreateReview(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in to leave a review"})
		return
	}
	var r models.ProductReview
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}
	r.ProductHandle = c.Param("handle")
	r.UserID = userID
	if err := h.content.CreateReview(c.Request.Context(), &r); err != nil {
		h.fail(c, err, "Failed to save review")
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *ContentHandlers) Recipes(c *gin.Context) {
	recipes, err := h.content.ListRecipes(c.Request.Context(), c.Query("featured") == "true", queryInt(c, "limit", 20))
	if err != nil {
		h.fail(c, err, "Failed to load recipes")
		return
	}
	c.JSON(http.StatusOK, recipes)
}

func (h *ContentHandlers) CreateRecipe(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in to share a recipe"})
		return
	}
	var r models.Recipe
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}
	r.UserID = userID
	if err := h.content.CreateRecipe(c.Request.Context(), &r); err != nil {
		h.fail(c, err, "Failed to save recipe")
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *ContentHandlers) Community(c *gin.Context) {
	posts, err := h.content.ListUserContent(c.Request.Context(), models.ContentFilter{
		ContentType:  c.Query("type"),
		FeaturedOnly: c.Query("featured") == "true",
	}, queryInt(c, "limit", 20))
	if err != nil {
		h.fail(c, err, "Failed to load community content")
		return
	}
	c.JSON(http.StatusOK, posts)
}

// CreateCommunityPost stores a post for moderation; it is not listed until
// approved.
func (h *ContentHandlers) CreateCommunityPost(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in to share with the community"})
		return
	}
	var post models.UserContent
	if err := c.ShouldBindJSON(&post); err != nil {
		badRequest(c, err)
		return
	}
	post.UserID = userID
	if err := h.content.CreateUserContent(c.Request.Context(), &post); err != nil {
		h.fail(c, err, "Failed to save post")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Thanks! Your post will appear once approved.", "post": post})
}

func (h *ContentHandlers) fail(c *gin.Context, err error, msg string) {
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
