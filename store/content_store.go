package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"nmafoods/api/models"
)

// ContentStore holds reviews, recipes and community posts.
type ContentStore struct {
	db *sql.DB
}

func NewContentStore(db *sql.DB) *ContentStore {
	return &ContentStore{db: db}
}

func (s *ContentStore) CreateReview(ctx context.Context, r *models.ProductReview) error {
	query := `
		INSERT INTO product_reviews (product_handle, user_id, rating, title, review_text, verified_purchase)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, helpful_count, created_at;
	`
	err := s.db.QueryRowContext(ctx, query,
		r.ProductHandle, r.UserID, r.Rating, r.Title, r.ReviewText, r.VerifiedPurchase,
	).Scan(&r.ID, &r.HelpfulCount, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// ReviewSummary returns the product's reviews, newest first, with their count
// and average rating.
func (s *ContentStore) ReviewSummary(ctx context.Context, handle string) (*models.ReviewSummary, error) {
	query := `
		SELECT id, product_handle, user_id, rating, title, review_text, verified_purchase, helpful_count, created_at
		FROM product_reviews
		WHERE product_handle = $1
		ORDER BY created_at DESC;
	`
	rows, err := s.db.QueryContext(ctx, query, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	sum := &models.ReviewSummary{ProductHandle: handle, Reviews: []models.ProductReview{}}
	total := 0
	for rows.Next() {
		var r models.ProductReview
		if err := rows.Scan(&r.ID, &r.ProductHandle, &r.UserID, &r.Rating, &r.Title, &r.ReviewText,
			&r.VerifiedPurchase, &r.HelpfulCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		total += r.Rating
		sum.Reviews = append(sum.Reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	sum.Count = len(sum.Reviews)
	if sum.Count > 0 {
		sum.AverageRating = float64(total) / float64(sum.Count)
	}
	return sum, nil
}

func (s *ContentStore) CreateRecipe(ctx context.Context, r *models.Recipe) error {
	if r.Difficulty == "" {
		r.Difficulty = "easy"
	}
	query := `
		INSERT INTO recipes (
			user_id, title, description, ingredients, instructions, prep_time_minutes,
			cook_time_minutes, servings, difficulty, spices_used, image_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, featured, created_at;
	`
	err := s.db.QueryRowContext(ctx, query,
		r.UserID, r.Title, r.Description, pq.Array(r.Ingredients), r.Instructions, r.PrepTimeMinutes,
		r.CookTimeMinutes, r.Servings, r.Difficulty, pq.Array(r.SpicesUsed), r.ImageURL,
	).Scan(&r.ID, &r.Featured, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create recipe: %w", err)
	}
	return nil
}

func (s *ContentStore) ListRecipes(ctx context.Context, featuredOnly bool, limit int) ([]models.Recipe, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, user_id, title, description, ingredients, instructions, prep_time_minutes,
			cook_time_minutes, servings, difficulty, spices_used, image_url, featured, created_at
		FROM recipes
		WHERE ($1 = false OR featured)
		ORDER BY created_at DESC
		LIMIT $2;
	`
	rows, err := s.db.QueryContext(ctx, query, featuredOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes: %w", err)
	}
	defer rows.Close()

	recipes := []models.Recipe{}
	for rows.Next() {
		var r models.Recipe
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, pq.Array(&r.Ingredients), &r.Instructions,
			&r.PrepTimeMinutes, &r.CookTimeMinutes, &r.Servings, &r.Difficulty, pq.Array(&r.SpicesUsed),
			&r.ImageURL, &r.Featured, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipes: %w", err)
	}
	return recipes, nil
}

// CreateUserContent stores a community post. Posts start unapproved.
func (s *ContentStore) CreateUserContent(ctx context.Context, c *models.UserContent) error {
	query := `
		INSERT INTO user_content (user_id, content_type, title, content, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, approved, featured, likes, created_at;
	`
	err := s.db.QueryRowContext(ctx, query, c.UserID, c.ContentType, c.Title, c.Content, c.ImageURL).
		Scan(&c.ID, &c.Approved, &c.Featured, &c.Likes, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user content: %w", err)
	}
	return nil
}

// ListUserContent returns approved posts matching f, newest first.
func (s *ContentStore) ListUserContent(ctx context.Context, f models.ContentFilter, limit int) ([]models.UserContent, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args := userContentQuery(f, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user content: %w", err)
	}
	defer rows.Close()

	posts := []models.UserContent{}
	for rows.Next() {
		var c models.UserContent
		if err := rows.Scan(&c.ID, &c.UserID, &c.ContentType, &c.Title, &c.Content, &c.ImageURL,
			&c.Approved, &c.Featured, &c.Likes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user content: %w", err)
		}
		posts = append(posts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user content: %w", err)
	}
	return posts, nil
}

func userContentQuery(f models.ContentFilter, limit int) (string, []any) {
	conds := []string{"approved = true"}
	var args []any
	if f.ContentType != "" {
		args = append(args, f.ContentType)
		conds = append(conds, fmt.Sprintf("content_type = $%d", len(args)))
	}
	if f.FeaturedOnly {
		conds = append(conds, "featured = true")
	}
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT id, user_id, content_type, title, content, image_url, approved, featured, likes, created_at
		FROM user_content
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d;
	`, strings.Join(conds, " AND "), len(args))
	return query, args
}
