package nodeid

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	encoded := Encode("Stock", int64(42))
	typeName, values, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "Stock", typeName)
	require.Len(t, values, 1)
	assert.Equal(t, json.Number("42"), values[0])
}

func TestIntPK_LargeValue(t *testing.T) {
	const largeID = int64(5188146770730811493)
	id, err := IntPK(Encode("Stock", largeID), "Stock")
	require.NoError(t, err)
	assert.Equal(t, largeID, id)
}

func TestStringPK(t *testing.T) {
	id, err := StringPK(Encode("Warehouse", "5f0c5a52-3d0f-4c35-9d3a-2f0c7a0b6a11"), "Warehouse")
	require.NoError(t, err)
	assert.Equal(t, "5f0c5a52-3d0f-4c35-9d3a-2f0c7a0b6a11", id)

	_, err = StringPK(Encode("Warehouse", 7), "Warehouse")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = StringPK(Encode("Warehouse", "a", "b"), "Warehouse")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestDecodeAs_TypeMismatch(t *testing.T) {
	_, err := DecodeAs(Encode("Stock", 1), "Warehouse")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.NotErrorIs(t, err, ErrInvalidID)

	_, err = IntPK(Encode("Warehouse", "w-1"), "Stock")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not base64", raw: "%%%"},
		{name: "not json", raw: base64.StdEncoding.EncodeToString([]byte("warehouse:1"))},
		{name: "no pk", raw: base64.StdEncoding.EncodeToString([]byte(`["Warehouse"]`))},
		{name: "empty type", raw: base64.StdEncoding.EncodeToString([]byte(`["", 1]`))},
		{name: "numeric type", raw: base64.StdEncoding.EncodeToString([]byte(`[1, 1]`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidID)
		})
	}
}

func TestIntPK_RejectsFractions(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(`["Stock", 1.5]`))
	_, err := IntPK(raw, "Stock")
	assert.ErrorIs(t, err, ErrInvalidID)
}
