package util

import (
	"github.com/gin-gonic/gin"
	"github.com/mssola/user_agent"
)

// Device classes used as segmentation values.
const (
	DeviceTypeDesktop = "desktop"
	DeviceTypeMobile  = "mobile"
	DeviceTypeBot     = "bot"
)

// SetScope sets scope to the context with a key/value.
func SetScope(c *gin.Context, key string, value interface{}) {
	scopeValue, exists := c.Get("scopes")
	if !exists {
		// Initializes scope with the key and value.
		c.Set("scopes", map[string]interface{}{key: value})
		return
	}

	scopeValue.(map[string]interface{})[key] = value
}

// GetScopeByKey gets specific scope by key from scopes.
func GetScopeByKey(c *gin.Context, key string) interface{} {
	scopeValue, exists := c.Get("scopes")
	if exists {
		return scopeValue.(map[string]interface{})[key]
	}
	return nil
}

func GetScopeByKeyAsString(c *gin.Context, key string) string {
	iface := GetScopeByKey(c, key)
	if iface == nil {
		return ""
	}
	return iface.(string)
}

// DeviceTypeByUserAgent classifies a raw user-agent string into a
// coarse device class used on segmented funnel results.
func DeviceTypeByUserAgent(userAgent string) string {
	if userAgent == "" {
		return ""
	}

	ua := user_agent.New(userAgent)
	if ua.Bot() {
		return DeviceTypeBot
	}
	if ua.Mobile() {
		return DeviceTypeMobile
	}
	return DeviceTypeDesktop
}
