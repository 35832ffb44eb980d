package models

import "time"

type ProductReview struct {
	ID               int64     `json:"id"`
	ProductHandle    string    `json:"productHandle"`
	UserID           int       `json:"userId"`
	Rating           int       `json:"rating" binding:"required,min=1,max=5"`
	Title            string    `json:"title" binding:"max=200"`
	ReviewText       string    `json:"reviewText" binding:"required"`
	VerifiedPurchase bool      `json:"verifiedPurchase"`
	HelpfulCount     int       `json:"helpfulCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ReviewSummary aggregates the reviews of one product.
type ReviewSummary struct {
	ProductHandle string          `json:"productHandle"`
	Count         int             `json:"count"`
	AverageRating float64         `json:"averageRating"`
	Reviews       []ProductReview `json:"reviews"`
}

type Recipe struct {
	ID              int64     `json:"id"`
	UserID          int       `json:"userId"`
	Title           string    `json:"title" binding:"required,max=200"`
	Description     string    `json:"description"`
	Ingredients     []string  `json:"ingredients" binding:"required,min=1"`
	Instructions    string    `json:"instructions" binding:"required"`
	PrepTimeMinutes int       `json:"prepTimeMinutes" binding:"min=0"`
	CookTimeMinutes int       `json:"cookTimeMinutes" binding:"min=0"`
	Servings        int       `json:"servings" binding:"min=0"`
	Difficulty      string    `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	SpicesUsed      []string  `json:"spicesUsed"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	Featured        bool      `json:"featured"`
	CreatedAt       time.Time `json:"createdAt"`
}

// UserContent is a community post; it stays hidden until approved.
type UserContent struct {
	ID          int64     `json:"id"`
	UserID      int       `json:"userId"`
	ContentType string    `json:"contentType" binding:"required,oneof=story tip photo review"`
	Title       string    `json:"title" binding:"required,max=200"`
	Content     string    `json:"content" binding:"required"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Approved    bool      `json:"approved"`
	Featured    bool      `json:"featured"`
	Likes       int       `json:"likes"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ContentFilter struct {
	ContentType  string
	FeaturedOnly bool
}
