package utils

import (
	"net/url"

	"nmafoods/api/models"
)

// ParseUTM reads the five utm_* parameters.
func ParseUTM(q url.Values) models.UTM {
	return models.UTM{
		Source:   q.Get("utm_source"),
		Medium:   q.Get("utm_medium"),
		Campaign: q.Get("utm_campaign"),
		Term:     q.Get("utm_term"),
		Content:  q.Get("utm_content"),
	}
}

// UTMFromURL parses raw and extracts its UTM parameters. An unparsable URL
// yields empty attribution.
func UTMFromURL(raw string) models.UTM {
	if raw == "" {
		return models.UTM{}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return models.UTM{}
	}
	return ParseUTM(u.Query())
}
