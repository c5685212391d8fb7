// Package format renders machine quantities (byte sizes, counts,
// durations) as short human-readable strings for logs and CLI output.
package format

import "fmt"

// HumanNumber renders large counts with a K/M/B suffix, e.g. param counts.
func HumanNumber(n uint64) string {
	switch {
	case n >= 1_000_000_000:
		return trimZero(fmt.Sprintf("%.1fB", float64(n)/1_000_000_000))
	case n >= 1_000_000:
		return trimZero(fmt.Sprintf("%.1fM", float64(n)/1_000_000))
	case n >= 1_000:
		return trimZero(fmt.Sprintf("%.1fK", float64(n)/1_000))
	default:
		return fmt.Sprintf("%d", n)
	}
}

func trimZero(s string) string {
	suffix := s[len(s)-1:]
	body := s[:len(s)-1]
	if len(body) >= 2 && body[len(body)-2:] == ".0" {
		return body[:len(body)-2] + suffix
	}
	return s
}
