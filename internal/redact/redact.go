// Package redact strips credentials, tokens, personal data and SQL from
// strings before they are logged. Error responses never carry raw error text;
// logs carry the redacted form.
package redact

import "regexp"

type rule struct {
	re          *regexp.Regexp
	placeholder string
}

// Rules run in order; earlier rules see the unmodified input.
var rules = []rule{
	{
		regexp.MustCompile(`(?i)(postgres|postgresql|redis|rediss)://[^@\s]+@`),
		"[REDACTED_CREDENTIAL]@",
	},
	{
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		"[REDACTED_JWT]",
	},
	{
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/=]+`),
		"Bearer [REDACTED_TOKEN]",
	},
	{
		regexp.MustCompile(`(?i)(password|passwd|pwd|secret|refresh_token|access_token)(["']?\s*[=:]\s*["']?)[^"'&\s,}]+`),
		"${1}${2}[REDACTED]",
	},
	{
		regexp.MustCompile(`(?i)\$2[aby]\$\d{2}\$[./A-Za-z0-9]{53}`),
		"[REDACTED_HASH]",
	},
	{
		regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		"[REDACTED_EMAIL]",
	},
	{
		regexp.MustCompile(`(?is)\b(SELECT|INSERT\s+INTO|UPDATE|DELETE\s+FROM)\b.*?(\bFROM\b|\bSET\b|\bVALUES\b|\bWHERE\b).*`),
		"[REDACTED_SQL]",
	},
	{
		regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?::\d{1,5})?\b`),
		"[REDACTED_HOST]",
	},
}

// String redacts sensitive information from s.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.placeholder)
	}
	return s
}

// Error redacts sensitive information from an error's message.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
