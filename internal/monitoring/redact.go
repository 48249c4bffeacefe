package monitoring

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// sensitiveKeys are JSON field names whose values must never reach logs.
var sensitiveKeys = []string{
	"api_key",
	"apiKey",
	"authorization",
	"bearer_token",
	"password",
	"secret",
	"token",
}

const redactedValue = "[REDACTED]"

// Redact returns a copy of a JSON payload with sensitive field values
// masked. Non-JSON input is returned unchanged; debug logging of request
// bodies must always pass through here first.
func Redact(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}

	out := body
	for _, key := range sensitiveKeys {
		if gjson.GetBytes(out, key).Exists() {
			patched, err := sjson.SetBytes(out, key, redactedValue)
			if err != nil {
				continue
			}
			out = patched
		}
	}
	return out
}

// RedactString is Redact for string payloads.
func RedactString(body string) string {
	return string(Redact([]byte(body)))
}
