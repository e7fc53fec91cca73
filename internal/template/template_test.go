package template

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	airnode          = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	fastGasEndpoint  = "0xba235f3d64620681803410e4a63999e103f2ffac3f6533bb3693b5c98c4c1810"
	fastGasTemplate  = "0x4c6bb1c0a0d5c38611d68f6f053b4453f4ad540d937ff1ae8005021cfd233277"
	fastGasBeacon    = "0x8f5b8a3159eebb958c6bd22cd7c5eee2a6e5adb2ef2f0113ffde16862d07fe86"
	fastGasEncoded   = "0x31626200000000000000000000000000000000000000000000000000000000005f706174680000000000000000000000000000000000000000000000000000007061796c6f61642e666173742e67617350726963652c000000000000000000005f74797065000000000000000000000000000000000000000000000000000000696e743235362c74696d657374616d7000000000000000000000000000000000"
	fastGasDecodedJS = `[{"type":"bytes32","name":"_path","value":"payload.fast.gasPrice,"},{"type":"bytes32","name":"_type","value":"int256,timestamp"}]`
)

func writeTemplate(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestTemplateAndBeaconID_KnownValues(t *testing.T) {
	params := hexutil.MustDecode(fastGasEncoded)

	id := TemplateID(common.HexToAddress(airnode), common.HexToHash(fastGasEndpoint), params)
	assert.Equal(t, fastGasTemplate, id.Hex())
	assert.Equal(t, fastGasBeacon, BeaconID(id, params).Hex())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "fast_gas.json", `{
		"templateId": "`+fastGasTemplate+`",
		"airnode": "`+airnode+`",
		"endpointId": "`+fastGasEndpoint+`",
		"parameters": "`+fastGasEncoded+`",
		"decodedParameters": `+fastGasDecodedJS+`,
		"chains": ["polygon", "rinkeby"]
	}`)
	// Decoded parameters only; the rest is computed.
	writeTemplate(t, dir, "eth_usd.json", `{
		"airnode": "`+airnode+`",
		"endpointId": "0x3718f9f03845bab74e16647b30034960eab7cb5fcff451651f3624fff6974026",
		"decodedParameters": [
			{"type":"bytes32","name":"_path","value":"payload.vwap,"},
			{"type":"bytes32","name":"pair","value":"eth_usd"}
		],
		"chains": ["polygon"]
	}`)
	writeTemplate(t, dir, "notes.txt", "ignored")

	records, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, records, 2)

	ethUSD, fastGas := records[0], records[1]
	assert.Equal(t, "eth_usd", ethUSD.Name)
	assert.Equal(t, "fast_gas", fastGas.Name)

	assert.Equal(t, fastGasTemplate, fastGas.TemplateID.Hex())
	assert.Equal(t, fastGasBeacon, fastGas.BeaconID().Hex())
	assert.Equal(t, []string{"polygon", "rinkeby"}, fastGas.Chains)

	assert.NotEmpty(t, ethUSD.EncodedParameters)
	assert.Equal(t, ethUSD.ComputeID(), ethUSD.TemplateID)
	require.Len(t, ethUSD.DecodedParameters, 2)
	assert.Equal(t, "eth_usd", ethUSD.DecodedParameters[1].Value)
}

func TestLoadFile_EncodedOnlyIsDecoded(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "fast_gas.json", `{
		"templateId": "`+fastGasTemplate+`",
		"airnode": "`+airnode+`",
		"endpointId": "`+fastGasEndpoint+`",
		"parameters": "`+fastGasEncoded+`",
		"chains": ["polygon"]
	}`)

	r, err := LoadFile(filepath.Join(dir, "fast_gas.json"))
	require.NoError(t, err)
	require.Len(t, r.DecodedParameters, 2)
	assert.Equal(t, "_path", r.DecodedParameters[0].Name)
	assert.Equal(t, "payload.fast.gasPrice,", r.DecodedParameters[0].Value)
}

func TestLoadFile_TemplateIDMismatch(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "tampered.json", `{
		"templateId": "`+fastGasTemplate+`",
		"airnode": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"endpointId": "`+fastGasEndpoint+`",
		"parameters": "`+fastGasEncoded+`",
		"chains": ["polygon"]
	}`)

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateIDMismatch))
}

func TestLoadDir_Duplicates(t *testing.T) {
	dir := t.TempDir()
	body := `{
		"airnode": "` + airnode + `",
		"endpointId": "` + fastGasEndpoint + `",
		"parameters": "` + fastGasEncoded + `",
		"chains": ["polygon"]
	}`
	writeTemplate(t, dir, "a.json", body)
	writeTemplate(t, dir, "b.json", body)

	_, err := LoadDir(dir)
	assert.Error(t, err)
}

func TestLoadDir_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "broken.json", `{"airnode": "nope"}`)

	_, err := LoadDir(dir)
	assert.Error(t, err)

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
