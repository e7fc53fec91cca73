package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LayoutAndFormat(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewFileStore(root)

	require.NoError(t, s.Commit(ctx, "polygon", "0.1.0", "RrpBeaconServer", serverAddr))

	path := filepath.Join(root, "0.1.0", "polygon.json")
	assert.Equal(t, path, s.Path("polygon", "0.1.0"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"RrpBeaconServer\": \"0x5FbDB2315678afecb367f032d93F642f64180aa3\"\n}\n", string(data))

	entries, _ := os.ReadDir(filepath.Dir(path))
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_LoadMissingIsEmpty(t *testing.T) {
	s := NewFileStore(t.TempDir())

	entries, err := s.Load(context.Background(), "polygon", "0.1.0")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestFileStore_ReadsExistingLedger(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "0.1.0")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	doc := `{"RrpBeaconServer": "0x5fbdb2315678afecb367f032d93f642f64180aa3"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "polygon.json"), []byte(doc), 0o644))

	entries, err := NewFileStore(root).Load(context.Background(), "polygon", "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, map[string]common.Address{"RrpBeaconServer": serverAddr}, entries)
}

func TestFileStore_CorruptLedger(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "0.1.0")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	for name, doc := range map[string]string{
		"notjson.json":   `{"RrpBeaconServer":`,
		"badaddr.json":   `{"RrpBeaconServer": "0x1234"}`,
		"wrongtype.json": `["0x5FbDB2315678afecb367f032d93F642f64180aa3"]`,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644))
		network := name[:len(name)-len(".json")]
		_, err := NewFileStore(root).Load(context.Background(), network, "0.1.0")
		assert.Error(t, err, name)
	}
}

func TestFileStore_CommitPreservesOtherKeys(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	require.NoError(t, s.Commit(ctx, "polygon", "0.1.0", "RrpBeaconServer", serverAddr))
	require.NoError(t, s.Commit(ctx, "polygon", "0.1.0", "DapiServer", otherAddr))

	entries, err := s.Load(ctx, "polygon", "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, map[string]common.Address{
		"RrpBeaconServer": serverAddr,
		"DapiServer":      otherAddr,
	}, entries)

	data, err := os.ReadFile(s.Path("polygon", "0.1.0"))
	require.NoError(t, err)
	var doc map[string]string
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc, 2)
}

func TestFileStore_CommitConflict(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	require.NoError(t, s.Commit(ctx, "polygon", "0.1.0", "RrpBeaconServer", serverAddr))
	// Same address again is accepted.
	require.NoError(t, s.Commit(ctx, "polygon", "0.1.0", "RrpBeaconServer", serverAddr))

	err := s.Commit(ctx, "polygon", "0.1.0", "RrpBeaconServer", otherAddr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteConflict)

	var conflict *LedgerWriteConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, serverAddr, conflict.Existing)
	assert.Equal(t, otherAddr, conflict.Proposed)

	entries, err := s.Load(ctx, "polygon", "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, serverAddr, entries["RrpBeaconServer"])
}

// A second process commits between our load and our commit.
func TestGetOrDeploy_CrossProcessRaceIsDetected(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l := New(NewFileStore(root))
	other := NewFileStore(root)

	deploy := func(ctx context.Context) (common.Address, error) {
		require.NoError(t, other.Commit(ctx, "polygon", "0.1.0", "RrpBeaconServer", otherAddr))
		return serverAddr, nil
	}

	_, err := l.GetOrDeploy(ctx, "polygon", "0.1.0", "RrpBeaconServer", deploy)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteConflict)

	addr, err := l.Lookup(ctx, "polygon", "0.1.0", "RrpBeaconServer")
	require.NoError(t, err)
	assert.Equal(t, otherAddr, addr)
}

func TestFileStore_NetworksIgnoresOtherFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewFileStore(root)
	require.NoError(t, s.Commit(ctx, "polygon", "0.1.0", "RrpBeaconServer", serverAddr))
	require.NoError(t, os.WriteFile(filepath.Join(root, "0.1.0", "README.md"), []byte("notes"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "0.1.0", "archive"), 0o755))

	networks, err := s.Networks(ctx, "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"polygon"}, networks)
}
