package validate

// Severity classifies how a failed rule affects the run.
// CRITICAL failures block the run; WARNING and INFO never do.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// rank orders severities for comparison; higher is more severe.
var rank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// MoreSevere reports whether a outranks b.
func MoreSevere(a, b Severity) bool {
	return rank[a] > rank[b]
}

// Escalate returns the next severity up, capped at critical.
func Escalate(s Severity) Severity {
	switch s {
	case SeverityInfo:
		return SeverityWarning
	case SeverityWarning:
		return SeverityCritical
	default:
		return SeverityCritical
	}
}

// IsValidSeverity returns true if the string is a known severity.
func IsValidSeverity(s string) bool {
	_, ok := rank[Severity(s)]
	return ok
}
