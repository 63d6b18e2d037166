package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// DeviceInfo holds parsed information from a User-Agent string
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	BrowserVer string `json:"browser_ver"`
	IsBot      bool   `json:"is_bot"`
	Raw        string `json:"raw"`
}

// ToMap converts the device info into a generic map for JSONB storage
func (d DeviceInfo) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"device_type": d.DeviceType,
		"os":          d.OS,
		"browser":     d.Browser,
		"browser_ver": d.BrowserVer,
		"is_bot":      d.IsBot,
	}
}

// ParseUserAgent parses a User-Agent string and extracts device information
func ParseUserAgent(userAgent string) DeviceInfo {
	if userAgent == "" {
		return DeviceInfo{
			DeviceType: "unknown",
			OS:         "Unknown",
			Browser:    "Unknown",
			Raw:        userAgent,
		}
	}

	parser := ua.New(userAgent)
	browser, version := parser.Browser()

	info := DeviceInfo{
		Raw:        userAgent,
		IsBot:      parser.Bot(),
		OS:         parser.OS(),
		Browser:    browser,
		BrowserVer: version,
	}

	switch {
	case parser.Mobile() && isTablet(userAgent):
		info.DeviceType = "tablet"
	case parser.Mobile():
		info.DeviceType = "mobile"
	default:
		info.DeviceType = "desktop"
	}

	return info
}

func isTablet(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	return strings.Contains(lower, "tablet") || strings.Contains(lower, "ipad")
}
