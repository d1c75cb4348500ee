// Package uiautomator2 provides HTTP client for UIAutomator2 server.
package uiautomator2

// Capabilities for session creation.
type Capabilities struct {
	PlatformName string `json:"platformName,omitempty"`
	DeviceName   string `json:"deviceName,omitempty"`
}

// SessionRequest for creating a session.
type SessionRequest struct {
	Capabilities Capabilities `json:"capabilities"`
}

// FindElementRequest for finding elements.
type FindElementRequest struct {
	Strategy string `json:"strategy"`
	Selector string `json:"selector"`
	Context  string `json:"context,omitempty"`
}

// ElementRect represents element bounds from /element/{id}/rect API.
// This uses x/y/width/height format returned by WebDriver element rect endpoint.
type ElementRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SettingsRequest for updating settings.
type SettingsRequest struct {
	Settings map[string]interface{} `json:"settings"`
}

// Locator strategies.
const (
	StrategyID          = "id"
	StrategyXPath       = "xpath"
	StrategyUIAutomator = "-android uiautomator"
)
