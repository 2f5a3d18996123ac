package creds

import (
	"encoding/json"
	"errors"
	"strings"
)

// secretFields are the recognized keys in structured secret-helper output,
// in priority order. The first present, non-empty string field wins.
var secretFields = []string{"token", "access_token", "password"}

// ErrEmptySecretOutput is returned when a secret source produced no usable
// credential.
var ErrEmptySecretOutput = errors.New("secret source produced no usable output")

// ParseSecretOutput extracts a credential from the output of a secret
// script or file. Structured output is tried first: a JSON object exposing
// one of the recognized fields. Anything that does not parse as JSON is
// treated as plain text and the first non-empty line is the secret.
func ParseSecretOutput(output []byte) (string, error) {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return "", ErrEmptySecretOutput
	}

	if strings.HasPrefix(trimmed, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(trimmed), &fields); err == nil {
			for _, key := range secretFields {
				if v, ok := fields[key]; ok {
					if s, ok := v.(string); ok && s != "" {
						return s, nil
					}
				}
			}
			return "", ErrEmptySecretOutput
		}
		// Not valid JSON after all; fall through to plain-text handling.
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}

	return "", ErrEmptySecretOutput
}
