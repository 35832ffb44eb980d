package utils

import (
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmafoods/api/models"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want DeviceInfo
	}{
		{
			name: "chrome on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			want: DeviceInfo{DeviceType: "desktop", Browser: "Chrome", OS: "Windows"},
		},
		{
			name: "edge on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0",
			want: DeviceInfo{DeviceType: "desktop", Browser: "Edge", OS: "Windows"},
		},
		{
			name: "safari on iphone",
			ua:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			want: DeviceInfo{DeviceType: "mobile", Browser: "Safari", OS: "iOS"},
		},
		{
			name: "ipad is a tablet",
			ua:   "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			want: DeviceInfo{DeviceType: "tablet", Browser: "Safari", OS: "iOS"},
		},
		{
			name: "firefox on android",
			ua:   "Mozilla/5.0 (Android 14; Mobile; rv:121.0) Gecko/121.0 Firefox/121.0",
			want: DeviceInfo{DeviceType: "mobile", Browser: "Firefox", OS: "Android"},
		},
		{
			name: "firefox on linux",
			ua:   "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			want: DeviceInfo{DeviceType: "desktop", Browser: "Firefox", OS: "Linux"},
		},
		{
			name: "empty",
			ua:   "",
			want: DeviceInfo{DeviceType: "desktop", Browser: "Unknown", OS: "Unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseUserAgent(tt.ua))
		})
	}
}

func TestUTMFromURL(t *testing.T) {
	got := UTMFromURL("https://nmafoods.com/shop?utm_source=instagram&utm_medium=social&utm_campaign=suya&utm_term=spice&utm_content=reel")
	assert.Equal(t, models.UTM{Source: "instagram", Medium: "social", Campaign: "suya", Term: "spice", Content: "reel"}, got)

	assert.Equal(t, models.UTM{}, UTMFromURL(""))
	assert.Equal(t, models.UTM{}, UTMFromURL("://bad url"))
	assert.Equal(t, models.UTM{Source: "google"}, ParseUTM(url.Values{"utm_source": {"google"}}))
}

func TestGenerateSessionID(t *testing.T) {
	now := time.UnixMilli(1730210400000)
	id := GenerateSessionID(now)

	assert.Regexp(t, regexp.MustCompile(`^session_1730210400000_[0-9a-z]{9}$`), id)
	assert.NotEqual(t, id, GenerateSessionID(now))
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, err := issuer.Generate(&models.User{ID: 42, Email: "ama@nmafoods.com"})
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, "ama@nmafoods.com", claims.Email)

	_, err = NewTokenIssuer("other", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := issuer.Generate(&models.User{ID: 1, Email: "a@b.co"})
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Validate(token)
	assert.Error(t, err)
}

func TestIsValidInterval(t *testing.T) {
	assert.True(t, IsValidInterval("Day"))
	assert.False(t, IsValidInterval("day"))
	assert.False(t, IsValidInterval("Day(timestamp)); DROP TABLE"))
}
