// Package gqlrequest decodes a GraphQL HTTP request once and derives the
// operation metadata that middleware uses for logging, tracing, metrics and
// transaction decisions.
package gqlrequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
)

// MaxBodyBytes caps the request body read for analysis.
const MaxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned when the payload exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("graphql request body too large")

// Envelope is the transport-level GraphQL payload.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	VariablesRaw  json.RawMessage

	DocumentSizeBytes int
}

type jsonPayload struct {
	Query         string          `json:"query"`
	OperationName string          `json:"operationName"`
	Variables     json.RawMessage `json:"variables"`
}

// DecodeEnvelope reads the GraphQL payload from r. POST bodies are restored
// afterwards so the GraphQL handler can decode them again.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, errors.New("request is nil")
	}
	env := Envelope{Method: r.Method, ContentType: r.Header.Get("Content-Type")}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		env.Query = q.Get("query")
		env.OperationName = q.Get("operationName")
		if vars := q.Get("variables"); vars != "" {
			env.VariablesRaw = json.RawMessage(vars)
		}
	case http.MethodPost:
		if r.Body == nil {
			return env, nil
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return env, err
		}
		if len(body) > MaxBodyBytes {
			return env, ErrBodyTooLarge
		}
		if err := decodeBody(&env, body); err != nil {
			return env, err
		}
	}

	env.DocumentSizeBytes = len(env.Query)
	return env, nil
}

func decodeBody(env *Envelope, body []byte) error {
	mediaType, _, err := mime.ParseMediaType(env.ContentType)
	if err != nil {
		mediaType = strings.TrimSpace(env.ContentType)
	}
	if mediaType == "application/graphql" {
		env.Query = string(body)
		return nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var payload jsonPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return err
	}
	env.Query = payload.Query
	env.OperationName = payload.OperationName
	if vars := bytes.TrimSpace(payload.Variables); len(vars) > 0 && !bytes.Equal(vars, []byte("null")) {
		env.VariablesRaw = append(json.RawMessage(nil), vars...)
	}
	return nil
}
