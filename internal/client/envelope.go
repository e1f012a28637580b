package client

import (
	"bytes"
	"encoding/json"

	apperrors "github.com/target/promptopt-client/internal/errors"
)

// envelope is the `{success, data, message, code}` wrapper some endpoints use.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

// unwrapEnvelope returns the payload of a successful response. A JSON object carrying a
// boolean `success` and a `data` member is unwrapped; any other body is returned as-is.
// An envelope reporting success=false is normalized into an unknown-kind error.
func unwrapEnvelope(status int, body []byte) ([]byte, *apperrors.APIError) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &members); err != nil {
		return trimmed, nil
	}
	if _, hasData := members["data"]; !hasData {
		return trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Success == nil {
		return trimmed, nil
	}
	if !*env.Success {
		code := env.Code
		if code == 0 {
			code = status
		}
		return nil, apperrors.Unknown(code, env.Message)
	}
	if bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return nil, nil
	}
	return env.Data, nil
}
