package notify

import "fmt"

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Severity maps an event kind to "success", "info", "warning" or "error".
func Severity(k Kind) string {
	switch k {
	case KindEpicClosed, KindSprintClosed:
		return "success"
	case KindApprovalDecided:
		return "warning"
	default:
		return "info"
	}
}

// SeverityColor maps a severity string to a sidebar color.
func SeverityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// Headline renders the one-line title of an event.
func Headline(e Event) string {
	switch {
	case e.IssueKey != "" && e.Title != "":
		return fmt.Sprintf("%s %s", e.IssueKey, e.Title)
	case e.IssueKey != "":
		return e.IssueKey
	default:
		return e.Title
	}
}

// Text renders the event as plain text for platforms without rich layouts
// and as a fallback.
func Text(e Event) string {
	h := Headline(e)
	if e.ActorID != "" {
		h = fmt.Sprintf("[%s] %s", e.ActorID, h)
	}
	if e.Summary == "" {
		return h
	}
	return h + ": " + e.Summary
}
