package models

import "time"

const (
	SubscriptionNewsletter = "newsletter"
	SubscriptionRecipes    = "recipes"
	SubscriptionPromotions = "promotions"
)

type Subscription struct {
	Email            string            `json:"email"`
	UserID           *int              `json:"userId,omitempty"`
	Subscribed       bool              `json:"subscribed"`
	SubscriptionType string            `json:"subscriptionType"`
	Preferences      map[string]string `json:"preferences,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

type SubscribeRequest struct {
	Email            string            `json:"email" binding:"required,email"`
	SubscriptionType string            `json:"subscriptionType" binding:"omitempty,oneof=newsletter recipes promotions"`
	Preferences      map[string]string `json:"preferences"`
}

type UnsubscribeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type CampaignRequest struct {
	Kind    string `json:"kind" binding:"required,oneof=newsletter recipe_update promotional"`
	Subject string `json:"subject" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// DeliveryResult is the per-recipient outcome of a campaign send.
type DeliveryResult struct {
	Email   string `json:"email"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
