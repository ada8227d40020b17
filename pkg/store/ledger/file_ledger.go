package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
)

// FileLedger stores the ledger as a single JSON array document.
//
// Every Append reads the whole document, appends in memory and rewrites it
// through a temp file and rename, so an append costs O(n) in existing entries.
// Writers hold an exclusive flock on path+".lock" across the read and rewrite,
// so handles in different processes on the same path do not lose entries.
type FileLedger struct {
	path string
	mu   sync.RWMutex
}

// NewFileLedger returns a ledger backed by the JSON document at path.
// The file is created on first Append (or Init).
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

// Path returns the backing document path.
func (f *FileLedger) Path() string { return f.path }

// Init creates an empty ledger document if none exists.
func (f *FileLedger) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return unavailable("create ledger dir", err)
	}
	unlock, err := lockFile(f.path, true)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := os.Stat(f.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return unavailable("stat ledger", err)
	}
	return f.save([]certificate.Certificate{})
}

func (f *FileLedger) Append(ctx context.Context, c certificate.Certificate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return unavailable("create ledger dir", err)
	}
	unlock, err := lockFile(f.path, true)
	if err != nil {
		return err
	}
	defer unlock()

	chain, err := f.load()
	if err != nil {
		return err
	}
	return f.save(append(chain, c))
}

func (f *FileLedger) Latest(ctx context.Context) (*certificate.Certificate, error) {
	chain, err := f.loadShared()
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, nil
	}
	latest := chain[len(chain)-1]
	return &latest, nil
}

func (f *FileLedger) List(ctx context.Context) ([]certificate.Certificate, error) {
	chain, err := f.loadShared()
	if err != nil {
		return nil, err
	}
	if chain == nil {
		chain = []certificate.Certificate{}
	}
	return chain, nil
}

func (f *FileLedger) ListByFarm(ctx context.Context, farmID string) ([]certificate.Certificate, error) {
	chain, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterFarm(chain, farmID), nil
}

// loadShared reads the document under the in-process read lock and a shared flock.
func (f *FileLedger) loadShared() ([]certificate.Certificate, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	unlock, err := lockFile(f.path, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return f.load()
}

// load reads the document. A missing or blank file is an empty ledger.
func (f *FileLedger) load() ([]certificate.Certificate, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, unavailable("read ledger", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var chain []certificate.Certificate
	if err := json.Unmarshal(data, &chain); err != nil {
		return nil, corrupt(f.path, err)
	}
	return chain, nil
}

func (f *FileLedger) save(chain []certificate.Certificate) error {
	data, err := json.MarshalIndent(chain, "", "    ")
	if err != nil {
		return unavailable("encode ledger", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return unavailable("create ledger dir", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return unavailable("create temp ledger", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return unavailable("write ledger", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return unavailable("sync ledger", err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable("close ledger", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return unavailable("commit ledger", err)
	}
	return nil
}
