package router

import (
	"regexp"
	"strings"
)

// controlTokens matches user, role and channel mention markup, and bare
// @words such as @everyone.
var controlTokens = regexp.MustCompile(`(?m)<@[!&]?\d+>|<#\d+>|(?:^|[ \t])@\S+`)

// CleanContent strips mention markup from raw message text and trims the
// result. Line breaks inside the text are kept.
func CleanContent(raw string) string {
	return strings.TrimSpace(controlTokens.ReplaceAllString(raw, ""))
}
