// Package geo resolves client IP addresses to a coarse location.
package geo

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog"
)

// ErrUnavailable is returned when the resolver has no database.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// Resolver looks up locations in a MaxMind GeoIP2/GeoLite2 City database.
type Resolver struct {
	reader *geoip2.Reader
	log    zerolog.Logger
}

// NewResolver opens the database at path. An empty path returns a nil
// Resolver, which resolves every address to an empty location.
func NewResolver(path string, log zerolog.Logger) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader, log: log}, nil
}

// Lookup returns the English city name and ISO country code for ip.
func (r *Resolver) Lookup(ip string) (city, country string, err error) {
	if r == nil || r.reader == nil {
		return "", "", ErrUnavailable
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	record, err := r.reader.City(parsed)
	if err != nil {
		return "", "", fmt.Errorf("geoip: lookup city: %w", err)
	}
	if record == nil {
		return "", "", nil
	}
	return record.City.Names["en"], record.Country.IsoCode, nil
}

// Locate formats the location of ip as "City, CC". Lookup failures are
// logged at debug and yield "".
func (r *Resolver) Locate(ip string) string {
	if r == nil {
		return ""
	}
	city, country, err := r.Lookup(ip)
	if err != nil {
		r.log.Debug().Err(err).Str("ip", ip).Msg("geoip lookup failed")
		return ""
	}
	return Format(city, country)
}

// Format joins the non-empty parts of a location.
func Format(city, country string) string {
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case country != "":
		return country
	default:
		return city
	}
}

func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
