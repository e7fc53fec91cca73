package airnodeabi

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fastGasEncoded = "0x" +
	"3162620000000000000000000000000000000000000000000000000000000000" +
	"5f70617468000000000000000000000000000000000000000000000000000000" +
	"7061796c6f61642e666173742e67617350726963652c00000000000000000000" +
	"5f74797065000000000000000000000000000000000000000000000000000000" +
	"696e743235362c74696d657374616d7000000000000000000000000000000000"

var fastGasParams = []Parameter{
	{Type: "bytes32", Name: "_path", Value: "payload.fast.gasPrice,"},
	{Type: "bytes32", Name: "_type", Value: "int256,timestamp"},
}

func TestEncode_KnownTemplate(t *testing.T) {
	got, err := EncodeHex(fastGasParams)
	require.NoError(t, err)
	assert.Equal(t, fastGasEncoded, got)

	decoded, err := DecodeHex(fastGasEncoded)
	require.NoError(t, err)
	assert.Equal(t, fastGasParams, decoded)
}

func TestEncode_AllTypes(t *testing.T) {
	params := []Parameter{
		{Type: "string", Name: "coin", Value: "ethereum"},
		{Type: "uint256", Name: "decimals", Value: "18"},
		{Type: "int256", Name: "offset", Value: "-5"},
		{Type: "address", Name: "owner", Value: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"},
		{Type: "bytes", Name: "blob", Value: "0xdeadbeef"},
		{Type: "string32", Name: "unit", Value: "usd"},
	}
	want := "0x" +
		"3153756961427300000000000000000000000000000000000000000000000000" +
		"636f696e00000000000000000000000000000000000000000000000000000000" +
		"00000000000000000000000000000000000000000000000000000000000001a0" +
		"646563696d616c73000000000000000000000000000000000000000000000000" +
		"0000000000000000000000000000000000000000000000000000000000000012" +
		"6f66667365740000000000000000000000000000000000000000000000000000" +
		"fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffb" +
		"6f776e6572000000000000000000000000000000000000000000000000000000" +
		"000000000000000000000000f39fd6e51aad88f6f4ce6ab8827279cfffb92266" +
		"626c6f6200000000000000000000000000000000000000000000000000000000" +
		"00000000000000000000000000000000000000000000000000000000000001e0" +
		"756e697400000000000000000000000000000000000000000000000000000000" +
		"7573640000000000000000000000000000000000000000000000000000000000" +
		"0000000000000000000000000000000000000000000000000000000000000008" +
		"657468657265756d000000000000000000000000000000000000000000000000" +
		"0000000000000000000000000000000000000000000000000000000000000004" +
		"deadbeef00000000000000000000000000000000000000000000000000000000"

	got, err := EncodeHex(params)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	decoded, err := DecodeHex(got)
	require.NoError(t, err)
	assert.Equal(t, params, decoded)
}

func TestEncode_Empty(t *testing.T) {
	got, err := EncodeHex(nil)
	require.NoError(t, err)
	assert.Equal(t, "0x31"+strings.Repeat("0", 62), got)

	decoded, err := DecodeHex(got)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestEncode_RawBytes32(t *testing.T) {
	raw := "0x3718f9f03845bab74e16647b30034960eab7cb5fcff451651f3624fff6974026"
	params := []Parameter{{Type: "bytes32", Name: "endpoint", Value: raw}}

	b, err := Encode(params)
	require.NoError(t, err)
	assert.Equal(t, raw, hexutil.Encode(b[64:96]))

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, params, decoded)
}

func TestEncode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		param Parameter
	}{
		{"unknown type", Parameter{Type: "bool", Name: "x", Value: "true"}},
		{"long name", Parameter{Type: "string", Name: strings.Repeat("n", 32), Value: "v"}},
		{"long string32", Parameter{Type: "string32", Name: "x", Value: strings.Repeat("v", 32)}},
		{"bad address", Parameter{Type: "address", Name: "x", Value: "0x1234"}},
		{"bad integer", Parameter{Type: "int256", Name: "x", Value: "1.5"}},
		{"negative uint", Parameter{Type: "uint256", Name: "x", Value: "-1"}},
		{"bad bytes", Parameter{Type: "bytes", Name: "x", Value: "zz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode([]Parameter{tt.param})
			assert.Error(t, err)
		})
	}

	many := make([]Parameter, MaxParameters+1)
	for i := range many {
		many[i] = Parameter{Type: "string", Name: "p", Value: "v"}
	}
	_, err := Encode(many)
	assert.Error(t, err)
}

func TestDecode_Errors(t *testing.T) {
	for name, input := range map[string]string{
		"short":          "0x3162",
		"wrong version":  "0x32" + strings.Repeat("0", 62),
		"unknown letter": "0x317a" + strings.Repeat("0", 60),
		"truncated":      fastGasEncoded[:len(fastGasEncoded)-64],
		"not hex":        "0xzz",
	} {
		_, err := DecodeHex(input)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInvalidEncoding), name)
	}
}

func TestParameter_UnmarshalNumber(t *testing.T) {
	var params []Parameter
	doc := `[{"type":"uint256","name":"times","value":1000000},{"type":"string","name":"to","value":"USD"}]`
	require.NoError(t, json.Unmarshal([]byte(doc), &params))

	assert.Equal(t, "1000000", params[0].Value)
	assert.Equal(t, "USD", params[1].Value)

	err := json.Unmarshal([]byte(`[{"type":"string","name":"x","value":{"a":1}}]`), &params)
	assert.Error(t, err)
}
