package logbuf

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Redacted replaces sensitive values.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"privatekey":        {},
	"private_key":       {},
	"mnemonic":          {},
	"jwt":               {},
	"password":          {},
	"password_hash":     {},
	"secret_access_key": {},
	"secretaccesskey":   {},
}

// IsSensitive reports whether key names a secret.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]

	return ok
}

// Redact returns a deep copy of data with sensitive values masked. Nested
// maps and slices are walked.
func Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	out := make(map[string]any, len(data))

	for k, v := range data {
		if IsSensitive(k) {
			out[k] = Redacted

			continue
		}

		out[k] = redactValue(v)
	}

	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Redact(val)
	case logrus.Fields:
		return Redact(val)
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}

		return Redact(m)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}

		return out
	case error:
		return val.Error()
	default:
		return v
	}
}
