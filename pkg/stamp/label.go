package stamp

import (
	"fmt"
	"strings"
	"time"
)

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// composeLabel renders "Signed by {name}{ - organization}{ (role)} - {date}".
func composeLabel(signerName, organization, role, date string) string {
	var b strings.Builder

	b.WriteString("Signed by ")
	b.WriteString(signerName)
	if organization != "" {
		b.WriteString(" - ")
		b.WriteString(organization)
	}
	if role != "" {
		b.WriteString(" (")
		b.WriteString(role)
		b.WriteString(")")
	}
	b.WriteString(" - ")
	b.WriteString(date)

	return b.String()
}

// formatDate renders the long form date and time used in the label, e.g.
// "19 octobre 2026 à 14:05" (fr) or "October 19, 2026 at 02:05 PM" (en).
func formatDate(t time.Time, locale string) string {
	switch locale {
	case "en":
		return t.Format("January 2, 2006 at 03:04 PM")
	default:
		return fmt.Sprintf("%d %s %d à %02d:%02d",
			t.Day(), frenchMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
	}
}

// SupportedLocale reports whether locale has a date format.
func SupportedLocale(locale string) bool {
	return locale == "fr" || locale == "en"
}
