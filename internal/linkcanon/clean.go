// Package linkcanon cleans URL-like strings pulled out of free text.
//
// CleanURL is a heuristic, not a validator: input that matches none of its
// patterns passes through unchanged.
package linkcanon

import (
	"regexp"
	"strings"
)

var (
	newWindowExpr  = regexp.MustCompile(`(?i)\s*[-–—]?\s*open in new window.*$`)
	schemeExpr     = regexp.MustCompile(`(?i)^https?://`)
	bareDomainExpr = regexp.MustCompile(`(?i)\b[a-z0-9_-]+\.[a-z]{2,}\b`)
)

const trailingPunctuation = ")].,;:!?'\"»›…-–— \t\r\n"

// CleanURL normalizes a link extracted from an email or page. It repeats
// cleanOnce until the string stops changing. The scheme is prepended at most
// once, and every later change only shortens the string, so the loop ends.
func CleanURL(raw string) string {
	current := raw
	for {
		next := cleanOnce(current)
		if next == current {
			return next
		}
		current = next
	}
}

func cleanOnce(raw string) string {
	x := strings.TrimSpace(raw)
	if x == "" {
		return ""
	}

	x = newWindowExpr.ReplaceAllString(x, "")
	x = strings.TrimLeft(x, "<")
	x = strings.TrimRight(x, ">")
	x = strings.TrimSpace(x)

	if x != "" && !schemeExpr.MatchString(x) && bareDomainExpr.MatchString(x) {
		x = "https://" + x
	}

	return strings.TrimRight(x, trailingPunctuation)
}
