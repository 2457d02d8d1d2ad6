package logger

import "regexp"

const redactedPlaceholder = "[REDACTED]"

type redactionRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Applied in order. Key/value pairs go first so "token: eyJ..." keeps its key.
var redactionRules = []redactionRule{
	{
		pattern:     regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|jwt_secret|token)(\s*[:=]\s*)[^\s,;&"']+`),
		replacement: "${1}${2}" + redactedPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9._~+/=-]+`),
		replacement: "${1} " + redactedPlaceholder,
	},
	{
		// Compact JWS: header.payload.signature, header always starts with eyJ.
		pattern:     regexp.MustCompile(`\beyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`),
		replacement: redactedPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`\$2[abxy]?\$\d{2}\$[./A-Za-z0-9]{53}`),
		replacement: redactedPlaceholder,
	},
}

// SanitizeLogMessage strips passwords, bearer tokens, JWTs and bcrypt hashes
// from free text before it reaches a log line.
func SanitizeLogMessage(message string) string {
	for _, rule := range redactionRules {
		message = rule.pattern.ReplaceAllString(message, rule.replacement)
	}
	return message
}

// SanitizeError is SanitizeLogMessage for an error value. A nil error gives
// an empty string.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeLogMessage(err.Error())
}
