package safety

import "time"

// Date sentinel tokens the gate coerces to concrete timestamps before
// a query reaches the database (spec.md §4.4, "Both kinds").
const (
	SentinelToday       = "DATE_TODAY"
	Sentinel7DaysAgo    = "DATE_7_DAYS_AGO"
	Sentinel30DaysAgo   = "DATE_30_DAYS_AGO"
)

// now is overridable in tests.
var now = time.Now

// resolveDateSentinel returns the concrete UTC timestamp for a
// recognized sentinel token, or ok=false if token isn't a sentinel.
func resolveDateSentinel(token string) (time.Time, bool) {
	switch token {
	case SentinelToday:
		t := now().UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	case Sentinel7DaysAgo:
		return now().UTC().AddDate(0, 0, -7), true
	case Sentinel30DaysAgo:
		return now().UTC().AddDate(0, 0, -30), true
	default:
		return time.Time{}, false
	}
}

// coerceParameterSentinels applies the same sentinel coercion to a
// positional SQL parameter list (spec.md §4.4, "Both kinds").
func coerceParameterSentinels(params []any) []any {
	out := make([]any, len(params))
	for i, p := range params {
		if s, ok := p.(string); ok {
			if resolved, ok := resolveDateSentinel(s); ok {
				out[i] = resolved
				continue
			}
		}
		out[i] = p
	}
	return out
}

// coerceDateSentinels rewrites any string filter value matching a
// recognized date sentinel into its concrete timestamp.
func coerceDateSentinels(filter map[string]any) map[string]any {
	if filter == nil {
		return nil
	}
	out := make(map[string]any, len(filter))
	for k, v := range filter {
		switch t := v.(type) {
		case string:
			if resolved, ok := resolveDateSentinel(t); ok {
				out[k] = resolved
				continue
			}
			out[k] = t
		case map[string]any:
			out[k] = coerceDateSentinels(t)
		default:
			out[k] = v
		}
	}
	return out
}
