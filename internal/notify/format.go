package notify

import (
	"fmt"
	"strings"

	"github.com/incidentfox/incidentfox/internal/database"
	"github.com/incidentfox/incidentfox/internal/utils"
)

const maxFieldLen = 500

// FormatCompletion renders a completed investigation as Slack mrkdwn
func FormatCompletion(inv *database.Investigation) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s *Investigation %s completed*", getSeverityEmoji(inv.Severity), inv.ID))
	if inv.Service != nil && *inv.Service != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", *inv.Service))
	}
	sb.WriteString("\n\n")

	if inv.Summary != nil && *inv.Summary != "" {
		sb.WriteString(fmt.Sprintf("*Summary*\n%s\n", utils.TruncateText(*inv.Summary, maxFieldLen)))
	}
	if inv.RootCause != nil && *inv.RootCause != "" {
		sb.WriteString(fmt.Sprintf("\n*Root Cause*\n%s\n", utils.TruncateText(*inv.RootCause, maxFieldLen)))
	}
	if inv.Resolution != nil && *inv.Resolution != "" {
		sb.WriteString(fmt.Sprintf("\n*Resolution*\n%s\n", utils.TruncateText(*inv.Resolution, maxFieldLen)))
	}

	meta := []string{"Severity: " + inv.Severity}
	if inv.EndedAt != nil {
		meta = append(meta, "Duration: "+utils.FormatDuration(inv.EndedAt.Sub(inv.StartedAt)))
	}
	if inv.Tags != nil && *inv.Tags != "" {
		meta = append(meta, "Tags: "+*inv.Tags)
	}
	sb.WriteString("\n---\n" + strings.Join(meta, " | "))

	return sb.String()
}

// getSeverityEmoji returns an emoji for the given severity level
func getSeverityEmoji(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	case "low":
		return "🟢"
	default:
		return "✅"
	}
}
