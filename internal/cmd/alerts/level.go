package alerts

import "github.com/agentstation/queuelink/pkg/notify"

// Symbols prefixing each notice.
const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "i"
	iconUnknown = "?"
)

const resetColor = "\033[0m"

// Icon returns the symbol shown before a notice of the given severity.
func Icon(s notify.Severity) string {
	switch s {
	case notify.SeveritySuccess:
		return iconSuccess
	case notify.SeverityError:
		return iconError
	case notify.SeverityWarning:
		return iconWarning
	case notify.SeverityInfo:
		return iconInfo
	default:
		return iconUnknown
	}
}

// Color returns the ANSI color code for a severity.
func Color(s notify.Severity) string {
	switch s {
	case notify.SeverityError:
		return "\033[31m" // Red
	case notify.SeverityWarning:
		return "\033[33m" // Yellow
	case notify.SeverityInfo:
		return "\033[36m" // Cyan
	case notify.SeveritySuccess:
		return "\033[32m" // Green
	default:
		return resetColor
	}
}
