package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	serverAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	otherAddr  = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

type countingDeployer struct {
	calls atomic.Int32
	addr  common.Address
	err   error
}

func (d *countingDeployer) deploy(context.Context) (common.Address, error) {
	d.calls.Add(1)
	return d.addr, d.err
}

type recordingObserver struct {
	mu       sync.Mutex
	deployed []Record
	reused   []Record
}

func (o *recordingObserver) Deployed(rec Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deployed = append(o.deployed, rec)
}

func (o *recordingObserver) Reused(rec Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reused = append(o.reused, rec)
}

func TestContractKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"RrpBeaconServer.sol", "RrpBeaconServer"},
		{"RrpBeaconServer.json", "RrpBeaconServer"},
		{"RrpBeaconServer", "RrpBeaconServer"},
		{"Airnode.sol.json", "Airnode"},
		{"./RrpBeaconServer.sol", "RrpBeaconServer"},
		{"keeper/DapiServer.sol", "keeper/DapiServer"},
		{`keeper\DapiServer.sol`, "keeper/DapiServer"},
		{"v0.1/RrpBeaconServer.sol", "v0.1/RrpBeaconServer"},
		{".sol", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ContractKey(tt.in), tt.in)
	}
}

func TestGetOrDeploy_DeploysOnce(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	l := New(NewFileStore(t.TempDir()), WithObserver(obs))
	d := &countingDeployer{addr: serverAddr}

	first, err := l.GetOrDeploy(ctx, "polygon", "0.1.0", "RrpBeaconServer.sol", d.deploy)
	require.NoError(t, err)
	second, err := l.GetOrDeploy(ctx, "polygon", "0.1.0", "RrpBeaconServer.sol", d.deploy)
	require.NoError(t, err)

	assert.Equal(t, serverAddr, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), d.calls.Load())
	assert.Len(t, obs.deployed, 1)
	assert.Len(t, obs.reused, 1)
}

func TestGetOrDeploy_SuffixVariantsShareRecord(t *testing.T) {
	ctx := context.Background()
	l := New(NewFileStore(t.TempDir()))
	d := &countingDeployer{addr: serverAddr}

	_, err := l.GetOrDeploy(ctx, "polygon", "0.1.0", "RrpBeaconServer.sol", d.deploy)
	require.NoError(t, err)
	addr, err := l.GetOrDeploy(ctx, "polygon", "0.1.0", "RrpBeaconServer.json", d.deploy)
	require.NoError(t, err)

	assert.Equal(t, serverAddr, addr)
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestGetOrDeploy_ScopedByNetworkAndVersion(t *testing.T) {
	ctx := context.Background()
	l := New(NewFileStore(t.TempDir()))
	d := &countingDeployer{addr: serverAddr}

	for _, target := range [][2]string{{"polygon", "0.1.0"}, {"rinkeby", "0.1.0"}, {"polygon", "0.2.0"}} {
		_, err := l.GetOrDeploy(ctx, target[0], target[1], "RrpBeaconServer", d.deploy)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), d.calls.Load())
}

func TestGetOrDeploy_ConcurrentCallersDeployOnce(t *testing.T) {
	ctx := context.Background()
	l := New(NewFileStore(t.TempDir()))
	d := &countingDeployer{addr: serverAddr}

	var wg sync.WaitGroup
	results := make([]common.Address, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = l.GetOrDeploy(ctx, "polygon", "0.1.0", "RrpBeaconServer", d.deploy)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, serverAddr, results[i])
	}
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestGetOrDeploy_DeployFailureRecordsNothing(t *testing.T) {
	ctx := context.Background()
	l := New(NewFileStore(t.TempDir()))
	boom := errors.New("out of gas")
	d := &countingDeployer{err: boom}

	_, err := l.GetOrDeploy(ctx, "polygon", "0.1.0", "RrpBeaconServer", d.deploy)
	require.ErrorIs(t, err, boom)

	_, err = l.Lookup(ctx, "polygon", "0.1.0", "RrpBeaconServer")
	assert.ErrorIs(t, err, ErrContractNotDeployed)
}

func TestGetOrDeploy_RejectsZeroAddress(t *testing.T) {
	ctx := context.Background()
	l := New(NewFileStore(t.TempDir()))
	d := &countingDeployer{}

	_, err := l.GetOrDeploy(ctx, "polygon", "0.1.0", "RrpBeaconServer", d.deploy)
	require.Error(t, err)

	_, err = l.Lookup(ctx, "polygon", "0.1.0", "RrpBeaconServer")
	assert.ErrorIs(t, err, ErrContractNotDeployed)
}

func TestGetOrDeploy_InvalidNames(t *testing.T) {
	ctx := context.Background()
	l := New(NewFileStore(t.TempDir()))
	d := &countingDeployer{addr: serverAddr}

	for _, tc := range [][3]string{
		{"", "0.1.0", "RrpBeaconServer"},
		{"polygon", "", "RrpBeaconServer"},
		{"../polygon", "0.1.0", "RrpBeaconServer"},
		{"polygon", "..", "RrpBeaconServer"},
		{"polygon", "0.1.0", ".sol"},
	} {
		_, err := l.GetOrDeploy(ctx, tc[0], tc[1], tc[2], d.deploy)
		assert.Error(t, err, "%v", tc)
	}
	assert.Zero(t, d.calls.Load())
}

func TestLookup_Miss(t *testing.T) {
	ctx := context.Background()
	l := New(NewFileStore(t.TempDir()))

	// No ledger file at all.
	addr, err := l.Lookup(ctx, "polygon", "0.1.0", "RrpBeaconServer")
	require.Error(t, err)
	assert.Equal(t, common.Address{}, addr)

	var notDeployed *ContractNotDeployedError
	require.True(t, errors.As(err, &notDeployed))
	assert.Equal(t, "polygon", notDeployed.Network)
	assert.Equal(t, "0.1.0", notDeployed.Version)
	assert.Equal(t, "RrpBeaconServer", notDeployed.ContractKey)

	// Ledger present, key absent.
	d := &countingDeployer{addr: serverAddr}
	_, err = l.GetOrDeploy(ctx, "polygon", "0.1.0", "AccessControlRegistry", d.deploy)
	require.NoError(t, err)
	_, err = l.Lookup(ctx, "polygon", "0.1.0", "RrpBeaconServer")
	assert.ErrorIs(t, err, ErrContractNotDeployed)
}

func TestRecordsAndNetworks(t *testing.T) {
	ctx := context.Background()
	l := New(NewFileStore(t.TempDir()))

	_, err := l.GetOrDeploy(ctx, "rinkeby", "0.1.0", "RrpBeaconServer", (&countingDeployer{addr: serverAddr}).deploy)
	require.NoError(t, err)
	_, err = l.GetOrDeploy(ctx, "rinkeby", "0.1.0", "DapiServer", (&countingDeployer{addr: otherAddr}).deploy)
	require.NoError(t, err)
	_, err = l.GetOrDeploy(ctx, "polygon", "0.1.0", "RrpBeaconServer", (&countingDeployer{addr: serverAddr}).deploy)
	require.NoError(t, err)

	records, err := l.Records(ctx, "rinkeby", "0.1.0")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "DapiServer", records[0].ContractKey)
	assert.Equal(t, otherAddr, records[0].Address)
	assert.Equal(t, "RrpBeaconServer", records[1].ContractKey)

	networks, err := l.Networks(ctx, "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"polygon", "rinkeby"}, networks)

	networks, err = l.Networks(ctx, "9.9.9")
	require.NoError(t, err)
	assert.Empty(t, networks)
}
