package format

import (
	"fmt"
	"time"
)

// HumanTime renders t relative to now (or "reference" if t is zero),
// e.g. "3 minutes ago" / "in 2 hours".
func HumanTime(t time.Time, reference string) string {
	if t.IsZero() {
		return reference
	}

	d := time.Until(t)
	future := d > 0
	if !future {
		d = -d
	}

	var s string
	switch {
	case d < time.Minute:
		s = "Less than a minute"
	case d < time.Hour:
		m := int(d.Minutes())
		s = fmt.Sprintf("%d minute%s", m, plural(m))
	case d < 24*time.Hour:
		h := int(d.Hours())
		s = fmt.Sprintf("%d hour%s", h, plural(h))
	default:
		days := int(d.Hours() / 24)
		s = fmt.Sprintf("%d day%s", days, plural(days))
	}

	if future {
		return "in " + s
	}
	return s + " ago"
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
