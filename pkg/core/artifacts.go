package core

// Attachment represents a diagnostics artifact written at stop time
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, hierarchy
	ContentType string `json:"contentType"` // MIME type: image/png, text/xml
	Path        string `json:"path"`        // Absolute file path
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentHierarchy  = "hierarchy"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeXML  = "text/xml"
	ContentTypeText = "text/plain"
)

// Dump file extensions
const (
	ExtHierarchy  = ".uix"
	ExtScreenshot = ".png"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
		Body:        data,
	}
}

// NewHierarchyAttachment creates a UI hierarchy attachment
func NewHierarchyAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentHierarchy,
		ContentType: ContentTypeXML,
		Path:        path,
		Body:        data,
	}
}

// ArtifactConfig controls when and what diagnostics are captured
type ArtifactConfig struct {
	// When to capture
	CaptureOnFailure    bool `yaml:"captureOnFailure" json:"captureOnFailure"`       // Default: true
	CaptureOnCompletion bool `yaml:"captureOnCompletion" json:"captureOnCompletion"` // Default: false

	// What to capture
	Screenshot  bool `yaml:"screenshot" json:"screenshot"`   // Default: true
	UIHierarchy bool `yaml:"uiHierarchy" json:"uiHierarchy"` // Default: true
	Email       bool `yaml:"email" json:"email"`             // Default: false
}

// DefaultArtifactConfig returns sensible defaults for artifact capture
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		CaptureOnFailure:    true,
		CaptureOnCompletion: false,
		Screenshot:          true,
		UIHierarchy:         true,
		Email:               false,
	}
}

// ShouldCapture returns true if artifacts should be captured for the given status
func (c ArtifactConfig) ShouldCapture(status RunStatus) bool {
	switch status {
	case StatusFailed:
		return c.CaptureOnFailure
	case StatusCompleted:
		return c.CaptureOnCompletion
	default:
		return false
	}
}
