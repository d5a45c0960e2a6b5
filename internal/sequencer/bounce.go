package sequencer

import "strings"

var hardBounceIndicators = []string{"bounce", "rejected", "not exist", "550", "551", "553"}

// IsHardBounce reports whether a transport error text describes a permanent
// recipient failure.
func IsHardBounce(errText string) bool {
	text := strings.ToLower(errText)
	for _, indicator := range hardBounceIndicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return false
}
