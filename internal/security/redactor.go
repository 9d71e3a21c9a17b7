// Package security keeps credentials out of logs and diagnostic output.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// RedactorService is the AppContext service name of the process-wide Redactor.
const RedactorService = "security.redactor"

// secretKeyPattern matches map keys that likely hold secrets.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|api_key|credential)`)

// Redactor masks secret values in strings and decoded config maps.
// Regex patterns catch well-known token shapes; literals catch credentials
// loaded at runtime. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddLiteral registers a secret that must never appear verbatim.
// Empty and duplicate values are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.literals {
		if l == secret {
			return
		}
	}
	r.literals = append(r.literals, secret)
}

// Redact masks every known pattern and literal in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// RedactMap masks, in place, string values stored under secret-looking keys
// and any string value containing a known secret. Nested maps and lists are
// walked. Used when printing the resolved configuration.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case string:
			if val != "" && secretKeyPattern.MatchString(k) {
				m[k] = RedactPlaceholder
			} else {
				m[k] = r.Redact(val)
			}
		case map[string]any:
			r.RedactMap(val)
		case []any:
			for i, item := range val {
				switch it := item.(type) {
				case map[string]any:
					r.RedactMap(it)
				case string:
					val[i] = r.Redact(it)
				}
			}
		}
	}
}

// DefaultPatterns returns patterns for credentials this program handles.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Discord bot token: base64 user id, timestamp, HMAC.
		regexp.MustCompile(`[MNO][A-Za-z0-9_-]{23,27}\.[A-Za-z0-9_-]{6}\.[A-Za-z0-9_-]{27,}`),
		// Authorization header values.
		regexp.MustCompile(`(?i)\b(Bot|Bearer)\s+[A-Za-z0-9._~+/=-]{16,}`),
	}
}
