package observability

import (
	"encoding/json"
	"regexp"
	"strings"
)

var sensitiveKeys = []string{
	"api_key", "apikey", "apiKey", "x-api-key", "authorization", "auth", "token", "access_token", "refresh_token", "password", "secret", "bearer",
}

// RedactJSON takes a JSON payload and redacts sensitive values based on
// common key names. Used for the LLM transport's request body before it is
// debug-logged (chat messages are structured JSON, not free text).
func RedactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	redacted := redactValue(v)
	b, err := json.Marshal(redacted)
	if err != nil {
		return raw
	}
	return b
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, vv := range val {
			if isSensitiveKey(k) {
				val[k] = "[REDACTED]"
			} else {
				val[k] = redactValue(vv)
			}
		}
		return val
	case []any:
		for i := range val {
			val[i] = redactValue(val[i])
		}
		return val
	default:
		return v
	}
}

func isSensitiveKey(k string) bool {
	low := strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if low == s {
			return true
		}
		// contains common header forms
		if strings.Contains(low, s) {
			return true
		}
	}
	return false
}

// textKeyValueRe matches "key = value" / "key: value" / "key=value" forms
// found in plain-text probe stdout and user queries, where value runs to
// the next whitespace or end of line.
var textKeyValueRe = regexp.MustCompile(`(?i)\b(` + strings.Join(sensitiveKeys, "|") + `)\s*[:=]\s*(\S+)`)

// RedactText redacts key=value / key: value pairs found in free-text
// payloads using the same key names as RedactJSON. Probe stdout and user
// queries are never JSON, so RedactJSON's structural walk does not apply
// to them; this is the text-shaped counterpart wired into the probe
// executor and request logging.
func RedactText(s string) string {
	if s == "" {
		return s
	}
	return textKeyValueRe.ReplaceAllString(s, "$1=[REDACTED]")
}

