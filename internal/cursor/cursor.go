// Package cursor encodes and decodes Relay-style connection cursors.
// Cursors are opaque base64-encoded JSON objects recording the entity type,
// the sort key, the ordering directions, and string-coerced values of the
// ordering columns for seek-based pagination.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const version = 1

// DateTimeLayout is the text form of datetime cursor values. MySQL accepts it
// directly in comparisons against DATETIME(6) columns.
const DateTimeLayout = "2006-01-02 15:04:05.999999"

// ErrInvalid is returned for any cursor that cannot be used by the current request.
var ErrInvalid = errors.New("invalid cursor")

// Payload is the decoded content of a cursor.
type Payload struct {
	Version    int      `json:"v"`
	TypeName   string   `json:"t"`
	SortKey    string   `json:"k"`
	Directions []string `json:"d"`
	Values     []string `json:"vals"`
}

// Encode builds an opaque cursor. Values are string-coerced so that large
// integers survive JSON.
func Encode(typeName, sortKey string, directions []string, values ...interface{}) string {
	normalized := make([]string, len(directions))
	for i, direction := range directions {
		normalized[i] = strings.ToUpper(direction)
	}
	stringValues := make([]string, 0, len(values))
	for _, v := range values {
		stringValues = append(stringValues, coerceToString(v))
	}
	data, err := json.Marshal(Payload{
		Version:    version,
		TypeName:   typeName,
		SortKey:    sortKey,
		Directions: normalized,
		Values:     stringValues,
	})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses a cursor produced by Encode.
func Decode(raw string) (Payload, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, fmt.Errorf("%w: malformed payload", ErrInvalid)
	}
	if payload.Version != version {
		return Payload{}, fmt.Errorf("%w: unsupported version %d", ErrInvalid, payload.Version)
	}
	if payload.TypeName == "" || payload.SortKey == "" {
		return Payload{}, fmt.Errorf("%w: missing type or sort key", ErrInvalid)
	}
	if len(payload.Directions) == 0 {
		return Payload{}, fmt.Errorf("%w: missing directions", ErrInvalid)
	}
	for i, direction := range payload.Directions {
		direction = strings.ToUpper(direction)
		if direction != "ASC" && direction != "DESC" {
			return Payload{}, fmt.Errorf("%w: direction %d must be ASC or DESC", ErrInvalid, i)
		}
		payload.Directions[i] = direction
	}
	if len(payload.Values) != len(payload.Directions) {
		return Payload{}, fmt.Errorf("%w: value count mismatch for ordering columns", ErrInvalid)
	}
	return payload, nil
}

// Validate confirms the cursor was issued for the same entity type, sort key,
// and directions as the current request.
func (p Payload) Validate(typeName, sortKey string, directions []string) error {
	if p.TypeName != typeName {
		return fmt.Errorf("%w: type mismatch: expected %s, got %s", ErrInvalid, typeName, p.TypeName)
	}
	if p.SortKey != sortKey {
		return fmt.Errorf("%w: sort mismatch: expected %s, got %s", ErrInvalid, sortKey, p.SortKey)
	}
	if len(p.Directions) != len(directions) {
		return fmt.Errorf("%w: direction count mismatch: expected %d, got %d", ErrInvalid, len(directions), len(p.Directions))
	}
	for i := range directions {
		if !strings.EqualFold(p.Directions[i], directions[i]) {
			return fmt.Errorf("%w: direction mismatch at position %d", ErrInvalid, i)
		}
	}
	return nil
}

// Args returns the cursor values as query arguments.
func (p Payload) Args() []interface{} {
	args := make([]interface{}, len(p.Values))
	for i, v := range p.Values {
		args[i] = v
	}
	return args
}

func coerceToString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.UTC().Format(DateTimeLayout)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
