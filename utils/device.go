package utils

import (
	"regexp"
	"strings"
)

var (
	mobileUA = regexp.MustCompile(`(?i)Mobile|Android|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)
	tabletUA = regexp.MustCompile(`(?i)iPad|Android.*Tablet|Tablet`)
)

// DeviceInfo is the device context derived from a user agent.
type DeviceInfo struct {
	DeviceType string `json:"deviceType"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
}

// ParseUserAgent classifies ua into desktop/mobile/tablet, a browser family
// and an OS family. Unknown values come back as "Unknown".
func ParseUserAgent(ua string) DeviceInfo {
	info := DeviceInfo{DeviceType: "desktop", Browser: "Unknown", OS: "Unknown"}

	if mobileUA.MatchString(ua) {
		info.DeviceType = "mobile"
		if tabletUA.MatchString(ua) {
			info.DeviceType = "tablet"
		}
	}

	// Edge and Chrome both claim Safari; Edge also claims Chrome.
	switch {
	case strings.Contains(ua, "Edg"):
		info.Browser = "Edge"
	case strings.Contains(ua, "Chrome"):
		info.Browser = "Chrome"
	case strings.Contains(ua, "Firefox"):
		info.Browser = "Firefox"
	case strings.Contains(ua, "Safari"):
		info.Browser = "Safari"
	}

	switch {
	case strings.Contains(ua, "Windows"):
		info.OS = "Windows"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"), strings.Contains(ua, "iPod"):
		info.OS = "iOS"
	case strings.Contains(ua, "Mac"):
		info.OS = "macOS"
	case strings.Contains(ua, "Android"):
		info.OS = "Android"
	case strings.Contains(ua, "Linux"):
		info.OS = "Linux"
	}

	return info
}
