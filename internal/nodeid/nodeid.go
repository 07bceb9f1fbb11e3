// Package nodeid encodes and decodes Relay-style global node IDs.
package nodeid

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrInvalidID is returned for IDs that are not well-formed.
	ErrInvalidID = errors.New("invalid id")
	// ErrTypeMismatch is returned when an ID names a different type than expected.
	ErrTypeMismatch = errors.New("id type mismatch")
)

// Encode marshals the type name and primary key values into a base64-encoded JSON array.
func Encode(typeName string, pkValues ...interface{}) string {
	payload := make([]interface{}, 0, len(pkValues)+1)
	payload = append(payload, typeName)
	payload = append(payload, pkValues...)
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses a node ID and returns the type name and raw PK values.
// Numbers are returned as json.Number so large integers keep their precision.
func Decode(nodeID string) (string, []interface{}, error) {
	raw, err := base64.StdEncoding.DecodeString(nodeID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload []interface{}
	if err := dec.Decode(&payload); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if len(payload) < 2 {
		return "", nil, fmt.Errorf("%w: missing type or primary key values", ErrInvalidID)
	}
	typeName, ok := payload[0].(string)
	if !ok || typeName == "" {
		return "", nil, fmt.Errorf("%w: missing type name", ErrInvalidID)
	}
	return typeName, payload[1:], nil
}

// DecodeAs decodes a node ID that must name expected.
func DecodeAs(nodeID, expected string) ([]interface{}, error) {
	typeName, values, err := Decode(nodeID)
	if err != nil {
		return nil, err
	}
	if typeName != expected {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, expected, typeName)
	}
	return values, nil
}

// StringPK decodes an ID with a single string primary key.
func StringPK(nodeID, expected string) (string, error) {
	values, err := DecodeAs(nodeID, expected)
	if err != nil {
		return "", err
	}
	if len(values) != 1 {
		return "", fmt.Errorf("%w: expected 1 key value, got %d", ErrInvalidID, len(values))
	}
	s, ok := values[0].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: key must be a string", ErrInvalidID)
	}
	return s, nil
}

// IntPK decodes an ID with a single integer primary key.
func IntPK(nodeID, expected string) (int64, error) {
	values, err := DecodeAs(nodeID, expected)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("%w: expected 1 key value, got %d", ErrInvalidID, len(values))
	}
	switch v := values[0].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: key must be an integer", ErrInvalidID)
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: key must be an integer", ErrInvalidID)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: key must be an integer", ErrInvalidID)
	}
}
