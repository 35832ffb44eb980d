package mail

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"nmafoods/api/models"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Audience lists subscribed addresses for any of the given subscription types.
type Audience interface {
	SubscribedEmails(ctx context.Context, types []string) ([]string, error)
}

// Audiences maps campaign kinds to the subscription types they reach.
var Audiences = map[string][]string{
	KindNewsletter:   {models.SubscriptionNewsletter},
	KindRecipeUpdate: {models.SubscriptionNewsletter, models.SubscriptionRecipes},
	KindPromotional:  {models.SubscriptionNewsletter, models.SubscriptionPromotions},
}

type Mailer struct {
	sender   Sender
	audience Audience
	siteURL  string
	log      zerolog.Logger
}

func NewMailer(sender Sender, audience Audience, siteURL string, log zerolog.Logger) *Mailer {
	return &Mailer{sender: sender, audience: audience, siteURL: siteURL, log: log}
}

// SendWelcome mails the welcome message to a new subscriber.
func (m *Mailer) SendWelcome(ctx context.Context, email string) error {
	msg, err := Welcome(email, m.siteURL)
	if err != nil {
		return err
	}
	if _, err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send welcome to %s: %w", email, err)
	}
	return nil
}

// SendCampaign sends one message per subscriber in the campaign's
// audience, in sequence. Each failure is recorded in its result and the
// loop continues; nothing is retried. The error is only for failures to
// build the audience or the message.
func (m *Mailer) SendCampaign(ctx context.Context, req models.CampaignRequest) ([]models.DeliveryResult, error) {
	types, ok := Audiences[req.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown campaign kind %q", req.Kind)
	}
	recipients, err := m.audience.SubscribedEmails(ctx, types)
	if err != nil {
		return nil, fmt.Errorf("load %s audience: %w", req.Kind, err)
	}
	msg, err := Render(req.Kind, req.Subject, req.Content)
	if err != nil {
		return nil, err
	}

	results := make([]models.DeliveryResult, 0, len(recipients))
	for _, email := range recipients {
		msg.To = email
		res := models.DeliveryResult{Email: email, Success: true}
		if _, err := m.sender.Send(ctx, msg); err != nil {
			res.Success = false
			res.Error = err.Error()
			m.log.Warn().Err(err).Str("kind", req.Kind).Str("email", email).Msg("campaign delivery failed")
		}
		results = append(results, res)
	}
	return results, nil
}
