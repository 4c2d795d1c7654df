package summarizer

import (
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

// SummaryUnavailable is the placeholder summary when the backend fails
func SummaryUnavailable(endpoint string) string {
	return fmt.Sprintf("Summary unavailable: the language model backend at %s could not be reached.", endpoint)
}

// ActionItemsUnavailable is the placeholder action item when the backend fails
func ActionItemsUnavailable(endpoint string) string {
	return fmt.Sprintf("Action items unavailable: the language model backend at %s could not be reached.", endpoint)
}

// ParseActionItems keeps the dash-prefixed lines of a model response, with
// the dash and surrounding whitespace removed. Empty results collapse to
// the single "no action items" placeholder.
func ParseActionItems(response string) []string {
	var items []string

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		if item := strings.TrimSpace(strings.TrimPrefix(line, "-")); item != "" {
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		return []string{types.PlaceholderNoActionItems}
	}
	return items
}
