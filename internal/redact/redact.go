// internal/redact/redact.go
package redact

import "regexp"

// Token replaces every masked endpoint.
const Token = "[REDACTED]"

// endpointPattern matches an IPv4 address followed by a port. The match is
// purely syntactic: octets above 255 and ports above 65535 are masked too.
var endpointPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}:\d{1,5}\b`)

// Redact masks all IPv4:port endpoints in text with Token.
func Redact(text string) string {
	return endpointPattern.ReplaceAllLiteralString(text, Token)
}

// Count returns how many endpoints Redact would mask.
func Count(text string) int {
	return len(endpointPattern.FindAllStringIndex(text, -1))
}
