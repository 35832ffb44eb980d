package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"nmafoods/api/batch"
	"nmafoods/api/config"
)

// GA4MaxEvents is the Measurement Protocol limit per request.
const GA4MaxEvents = 25

// TagEvent is one payload mirrored to the analytics tag.
type TagEvent struct {
	ClientID  string         `json:"-"`
	UserID    string         `json:"-"`
	Name      string         `json:"name"`
	Params    map[string]any `json:"params,omitempty"`
	Timestamp time.Time      `json:"-"`
}

type ga4Request struct {
	ClientID        string     `json:"client_id"`
	UserID          string     `json:"user_id,omitempty"`
	TimestampMicros int64      `json:"timestamp_micros,omitempty"`
	Events          []TagEvent `json:"events"`
}

// GA4 posts tag events to the GA4 Measurement Protocol. It is a batch sink:
// one Send issues one request per client id, at most GA4MaxEvents each.
type GA4 struct {
	endpoint string
	client   *http.Client
}

func NewGA4(cfg config.GA4Config, client *http.Client) (*GA4, error) {
	if cfg.MeasurementID == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("ga4: measurement id and api secret are required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("ga4: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("measurement_id", cfg.MeasurementID)
	q.Set("api_secret", cfg.APISecret)
	u.RawQuery = q.Encode()

	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GA4{endpoint: u.String(), client: client}, nil
}

// Send posts every group even when an earlier one fails. If some groups
// were accepted, the error is a *batch.PartialError carrying only the events
// of the groups that failed, so a retry does not duplicate delivered ones.
func (g *GA4) Send(ctx context.Context, events []TagEvent) error {
	var (
		failed []TagEvent
		errs   []error
	)
	for _, req := range groupByClient(events) {
		if err := g.post(ctx, req); err != nil {
			failed = append(failed, req.Events...)
			errs = append(errs, fmt.Errorf("client %s: %w", req.ClientID, err))
		}
	}
	switch {
	case len(errs) == 0:
		return nil
	case len(failed) == len(events):
		return errors.Join(errs...)
	default:
		return &batch.PartialError[TagEvent]{Failed: failed, Err: errors.Join(errs...)}
	}
}

func (g *GA4) post(ctx context.Context, body ga4Request) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("ga4: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("ga4: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("ga4: send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ga4: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// groupByClient splits events into requests per client id, keeping the
// order in which client ids first appear and the order of their events.
func groupByClient(events []TagEvent) []ga4Request {
	var (
		out   []ga4Request
		index = map[string]int{}
	)
	for _, ev := range events {
		i, ok := index[ev.ClientID]
		if !ok || len(out[i].Events) >= GA4MaxEvents {
			req := ga4Request{ClientID: ev.ClientID, UserID: ev.UserID}
			if !ev.Timestamp.IsZero() {
				req.TimestampMicros = ev.Timestamp.UnixMicro()
			}
			out = append(out, req)
			i = len(out) - 1
			index[ev.ClientID] = i
		}
		if out[i].UserID == "" {
			out[i].UserID = ev.UserID
		}
		out[i].Events = append(out[i].Events, ev)
	}
	return out
}
