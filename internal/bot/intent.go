package bot

import (
	"regexp"
	"strings"
)

// Intent detection mirrors the keyword heuristics the frontend was built
// against. Detection is keyword-based on purpose: it runs on every
// message and must never call the model.
var (
	// timePattern matches questions about the current time.
	timePattern = regexp.MustCompile(`(?i)horas|hora atual`)

	// weatherPattern matches weather keywords. "tempo" is ambiguous in
	// Portuguese (time/weather); combined with a location it reads as
	// weather, which is why weather intent also requires a location.
	weatherPattern = regexp.MustCompile(`(?i)\bclima\b|\btempo\b`)

	// locationPattern extracts the place name after "em".
	locationPattern = regexp.MustCompile(`(?i)\bem\s+([^,.?!]+)`)
)

// timeIntent reports whether msg asks for the current time.
func timeIntent(msg string) bool {
	return timePattern.MatchString(msg)
}

// weatherIntent reports whether msg asks for the weather somewhere, and
// extracts the location. Both a weather keyword and a location
// preposition are required; "tempo" alone falls through to the model.
func weatherIntent(msg string) (string, bool) {
	if !weatherPattern.MatchString(msg) {
		return "", false
	}
	m := locationPattern.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}
	location := strings.TrimSpace(m[1])
	if location == "" {
		return "", false
	}
	return location, true
}
