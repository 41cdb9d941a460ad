package firestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"memoria/internal/ports"
)

// FileIdentity issues one anonymous id per app install, persisted to a local
// file the way the backend's anonymous auth persists its uid.
type FileIdentity struct {
	path string

	once sync.Once
	id   string
	err  error
}

var _ ports.IdentityProvider = (*FileIdentity)(nil)

// NewFileIdentity stores the identity at the given path.
func NewFileIdentity(path string) *FileIdentity {
	return &FileIdentity{path: path}
}

// PlayerID loads the persisted id, minting and saving one on first use.
func (f *FileIdentity) PlayerID(context.Context) (string, error) {
	f.once.Do(func() {
		if data, err := os.ReadFile(f.path); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				f.id = id
				return
			}
		}
		id := uuid.NewString()
		if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
			f.err = fmt.Errorf("persist identity: %w", err)
			return
		}
		if err := os.WriteFile(f.path, []byte(id+"\n"), 0o600); err != nil {
			f.err = fmt.Errorf("persist identity: %w", err)
			return
		}
		f.id = id
	})
	return f.id, f.err
}
