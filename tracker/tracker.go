// Package tracker builds analytics events and conversions from request
// context and hands them to their batchers. Nothing here performs I/O on
// the caller's goroutine.
package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nmafoods/api/models"
	"nmafoods/api/utils"
)

var ErrUnknownConversion = errors.New("tracker: unknown conversion type")

// Queue is the enqueue side of a batcher.
type Queue[T any] interface {
	Enqueue(item T) error
}

// Locator resolves a client IP to a display location. An empty result means
// unknown.
type Locator interface {
	Locate(ip string) string
}

// Visit is the request context every tracked record is stamped with.
type Visit struct {
	SessionID string
	UserID    string
	PagePath  string
	PageTitle string
	PageURL   string
	Referrer  string
	UserAgent string
	IPAddress string
	UTM       models.UTM
}

// Event is a generic event before enrichment.
type Event struct {
	Name     string
	Category string
	Action   string
	Label    string
	Value    *float64
	Params   map[string]any
}

type Tracker struct {
	events      Queue[models.AnalyticsEvent]
	conversions Queue[models.Conversion]
	tag         Queue[TagEvent]
	locator     Locator
	currency    string
	log         zerolog.Logger
	now         func() time.Time
}

type Option func(*Tracker)

// WithTag mirrors events and conversions to the third-party tag queue.
func WithTag(q Queue[TagEvent]) Option {
	return func(t *Tracker) { t.tag = q }
}

func WithLocator(l Locator) Option {
	return func(t *Tracker) { t.locator = l }
}

func WithCurrency(code string) Option {
	return func(t *Tracker) {
		if code != "" {
			t.currency = code
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

func New(events Queue[models.AnalyticsEvent], conversions Queue[models.Conversion], opts ...Option) *Tracker {
	t := &Tracker{
		events:      events,
		conversions: conversions,
		currency:    "USD",
		log:         zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TrackEvent enqueues a generic event for v.
func (t *Tracker) TrackEvent(v Visit, e Event) error {
	params := e.Params
	if params == nil {
		params = map[string]any{}
	}
	return t.ingest(v, models.AnalyticsEvent{
		EventName:        e.Name,
		EventCategory:    e.Category,
		EventAction:      e.Action,
		EventLabel:       e.Label,
		EventValue:       e.Value,
		PagePath:         v.PagePath,
		PageTitle:        v.PageTitle,
		CustomParameters: params,
	}, true)
}

// Ingest enriches an event received from a browser beacon and enqueues it.
// Fields the browser already set are kept; identity, address, device and
// location always come from the server side.
func (t *Tracker) Ingest(v Visit, ev models.AnalyticsEvent) error {
	return t.ingest(v, ev, true)
}

func (t *Tracker) ingest(v Visit, ev models.AnalyticsEvent, mirror bool) error {
	ev.EventID = uuid.New().String()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = t.now().UTC()
	}
	if ev.SessionID == "" {
		ev.SessionID = v.SessionID
	}
	if ev.UserID == "" {
		ev.UserID = v.UserID
	}
	if ev.PagePath == "" {
		ev.PagePath = v.PagePath
	}
	if ev.PageTitle == "" {
		ev.PageTitle = v.PageTitle
	}
	if ev.Referrer == "" {
		ev.Referrer = v.Referrer
	}
	if ev.UTM == (models.UTM{}) {
		ev.UTM = v.UTM
	}
	ev.UserAgent = v.UserAgent
	ev.IPAddress = v.IPAddress

	device := utils.ParseUserAgent(v.UserAgent)
	ev.DeviceType = device.DeviceType
	ev.Browser = device.Browser
	ev.OS = device.OS

	if t.locator != nil && v.IPAddress != "" {
		ev.Location = t.locator.Locate(v.IPAddress)
	}

	if err := t.events.Enqueue(ev); err != nil {
		return fmt.Errorf("enqueue event %s: %w", ev.EventName, err)
	}

	if mirror {
		t.mirror(ev.SessionID, ev.UserID, ev.EventName, eventParams(ev))
	}
	return nil
}

// TrackPageView records a page_view for path (or v.PagePath when empty).
func (t *Tracker) TrackPageView(v Visit, path, title string) error {
	if path == "" {
		path = v.PagePath
	}
	if title == "" {
		title = v.PageTitle
	}
	v.PagePath = path
	v.PageTitle = title

	return t.TrackEvent(v, Event{
		Name:     "page_view",
		Category: "engagement",
		Action:   "view",
		Label:    path,
		Params: map[string]any{
			"page_path":     path,
			"page_title":    title,
			"page_location": v.PageURL,
		},
	})
}

// TrackConversion writes the conversion record, a mirrored generic event
// and, when a tag is configured, the tag payload. Values are trusted as
// given; only the currency is defaulted.
func (t *Tracker) TrackConversion(v Visit, kind models.ConversionType, value *float64, data models.ConversionData) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownConversion, kind)
	}
	if data.Currency == "" {
		data.Currency = t.currency
	}

	conv := models.Conversion{
		ConversionID:    uuid.New().String(),
		UserID:          v.UserID,
		SessionID:       v.SessionID,
		ConversionType:  kind,
		ConversionValue: value,
		Timestamp:       t.now().UTC(),
		ConversionData:  data,
	}

	var errs []error
	if err := t.conversions.Enqueue(conv); err != nil {
		errs = append(errs, fmt.Errorf("enqueue conversion %s: %w", kind, err))
	}

	label := data.ProductName
	if label == "" {
		label = string(kind)
	}
	// The mirrored event goes through the event queue only; the tag gets the
	// richer conversion payload below.
	ev := models.AnalyticsEvent{
		EventName:        string(kind),
		EventCategory:    "conversion",
		EventAction:      "convert",
		EventLabel:       label,
		EventValue:       value,
		CustomParameters: conversionParams(data),
	}
	if err := t.ingest(v, ev, false); err != nil {
		errs = append(errs, err)
	}

	t.mirror(conv.SessionID, conv.UserID, string(kind), tagConversionParams(kind, value, data))
	return errors.Join(errs...)
}

func (t *Tracker) mirror(clientID, userID, name string, params map[string]any) {
	if t.tag == nil {
		return
	}
	err := t.tag.Enqueue(TagEvent{
		ClientID:  clientID,
		UserID:    userID,
		Name:      name,
		Params:    params,
		Timestamp: t.now().UTC(),
	})
	if err != nil {
		t.log.Warn().Err(err).Str("event", name).Msg("tag mirror dropped")
	}
}

func eventParams(ev models.AnalyticsEvent) map[string]any {
	params := map[string]any{
		"event_category": ev.EventCategory,
	}
	if ev.EventLabel != "" {
		params["event_label"] = ev.EventLabel
	}
	if ev.EventValue != nil {
		params["value"] = *ev.EventValue
	}
	if ev.PagePath != "" {
		params["page_path"] = ev.PagePath
	}
	if ev.PageTitle != "" {
		params["page_title"] = ev.PageTitle
	}
	for k, v := range ev.CustomParameters {
		if _, taken := params[k]; !taken {
			params[k] = v
		}
	}
	return params
}

func conversionParams(d models.ConversionData) map[string]any {
	params := map[string]any{"currency": d.Currency}
	set := func(k, v string) {
		if v != "" {
			params[k] = v
		}
	}
	set("productId", d.ProductID)
	set("productName", d.ProductName)
	set("productCategory", d.ProductCategory)
	set("transactionId", d.TransactionID)
	set("paymentMethod", d.PaymentMethod)
	set("shippingMethod", d.ShippingMethod)
	set("couponCode", d.CouponCode)
	if d.Quantity > 0 {
		params["quantity"] = d.Quantity
	}
	if d.FunnelStep > 0 {
		params["funnelStep"] = d.FunnelStep
	}
	return params
}

func tagConversionParams(kind models.ConversionType, value *float64, d models.ConversionData) map[string]any {
	params := map[string]any{"currency": d.Currency}
	if value != nil {
		params["value"] = *value
	}
	if kind != models.ConversionPurchase {
		return params
	}

	if d.TransactionID != "" {
		params["transaction_id"] = d.TransactionID
	}
	qty := d.Quantity
	if qty <= 0 {
		qty = 1
	}
	item := map[string]any{"quantity": qty}
	if d.ProductID != "" {
		item["item_id"] = d.ProductID
	}
	if d.ProductName != "" {
		item["item_name"] = d.ProductName
	}
	if d.ProductCategory != "" {
		item["item_category"] = d.ProductCategory
	}
	if value != nil {
		item["price"] = *value
	}
	params["items"] = []map[string]any{item}
	return params
}
