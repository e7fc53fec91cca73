package descriptor

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/Bidon15/beaconctl/internal/fsutil"
)

// DocumentStore persists named JSON documents. Putting a name that exists
// replaces the previous document entirely.
type DocumentStore interface {
	Put(ctx context.Context, name string, doc any) error
}

// DirStore is a DocumentStore writing below a directory. Names use forward
// slashes and may not leave the directory.
type DirStore struct {
	root string
}

var _ DocumentStore = (*DirStore)(nil)

// NewDirStore returns a DirStore rooted at root.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Root returns the directory documents are written to.
func (s *DirStore) Root() string {
	return s.root
}

func (s *DirStore) Put(ctx context.Context, name string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := path.Clean(name)
	if name == "" || path.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("descriptor: invalid document name %q", name)
	}
	if err := fsutil.WriteJSON(filepath.Join(s.root, filepath.FromSlash(clean)), doc); err != nil {
		return fmt.Errorf("write %s: %w", clean, err)
	}
	return nil
}
