package audit

import "strings"

// ClassifyLabel derives an impact from a free-text action label. This is the
// legacy substring rule kept for collaborators that feed raw event
// descriptions instead of structured kinds: ordered patterns, first match
// wins. New code should pass a Kind and rely on ImpactOf.
func ClassifyLabel(label string) Impact {
	switch {
	case strings.Contains(label, "Created project"):
		return ImpactHigh
	case strings.Contains(label, "Updated permissions"):
		return ImpactMedium
	case strings.Contains(label, "Approved"), strings.Contains(label, "Denied"):
		return ImpactMedium
	default:
		return ImpactLow
	}
}
