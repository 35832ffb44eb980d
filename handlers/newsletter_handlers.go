package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nmafoods/api/middleware"
	"nmafoods/api/models"
	"nmafoods/api/store"
)

type SubscriptionRepository interface {
	Subscribe(ctx context.Context, req models.SubscribeRequest, userID *int) (*models.Subscription, error)
	Unsubscribe(ctx context.Context, email string) error
}

type Mailer interface {
	SendWelcome(ctx context.Context, email string) error
	SendCampaign(ctx context.Context, req models.CampaignRequest) ([]models.DeliveryResult, error)
}

type NewsletterHandlers struct {
	subs    SubscriptionRepository
	mailer  Mailer
	tracker ConversionTracker
	visitor Visitor
	log     zerolog.Logger
}

// NewNewsletterHandlers builds the handlers. A nil mailer disables outgoing
// mail.
func NewNewsletterHandlers(subs SubscriptionRepository, mailer Mailer, t ConversionTracker, v Visitor, log zerolog.Logger) *NewsletterHandlers {
	return &NewsletterHandlers{subs: subs, mailer: mailer, tracker: t, visitor: v, log: log}
}

const welcomeTimeout = 10 * time.Second

func (h *NewsletterHandlers) Subscribe(c *gin.Context) {
	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var userID *int
	if id, ok := middleware.UserID(c); ok {
		userID = &id
	}
	sub, err := h.subs.Subscribe(c.Request.Context(), req, userID)
	if err != nil {
		h.log.Error().Err(err).Msg("subscribe failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe"})
		return
	}

	emailSent := false
	if h.mailer != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), welcomeTimeout)
		err := h.mailer.SendWelcome(ctx, sub.Email)
		cancel()
		if err != nil {
			h.log.Warn().Err(err).Msg("welcome email not sent")
		} else {
			emailSent = true
		}
	}

	v, _, _ := h.visitor.Visit(c, PageContext{PagePath: "/newsletter"})
	if err := h.tracker.TrackConversion(v, models.ConversionNewsletterSignup, nil, models.ConversionData{}); err != nil {
		h.log.Warn().Err(err).Msg("newsletter conversion not tracked")
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Successfully subscribed to newsletter",
		"email_sent":   emailSent,
		"subscription": sub,
	})
}

func (h *NewsletterHandlers) Unsubscribe(c *gin.Context) {
	var req models.UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.subs.Unsubscribe(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		h.log.Error().Err(err).Msg("unsubscribe failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unsubscribe"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Successfully unsubscribed"})
}

// SendCampaign mails a campaign to its audience and returns the
// per-recipient results.
func (h *NewsletterHandlers) SendCampaign(c *gin.Context) {
	var req models.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if h.mailer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Email delivery is not configured"})
		return
	}
	results, err := h.mailer.SendCampaign(c.Request.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Str("kind", req.Kind).Msg("campaign failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send campaign"})
		return
	}
	sent := 0
	for _, r := range results {
		if r.Success {
			sent++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"sent":    sent,
		"failed":  len(results) - sent,
		"results": results,
	})
}
