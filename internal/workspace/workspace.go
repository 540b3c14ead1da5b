// Package workspace allocates per-request temporary namespaces under a
// shared upload root and guarantees their removal.
package workspace

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/zzkydev/Convertify-PDF/internal/apperr"
)

// CleanupHook is notified of every path whose removal failed.
type CleanupHook func(path string, err error)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for cleanup warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithCleanupHook registers a callback for failed removals.
func WithCleanupHook(hook CleanupHook) Option {
	return func(m *Manager) { m.onCleanupFailure = hook }
}

// Manager creates workspaces under root.
type Manager struct {
	fs               afero.Fs
	root             string
	logger           zerolog.Logger
	onCleanupFailure CleanupHook
}

// NewManager ensures root exists and returns a Manager for it.
func NewManager(fs afero.Fs, root string, opts ...Option) (*Manager, error) {
	if root == "" {
		return nil, apperr.Storage("upload root is required", nil)
	}
	root = filepath.Clean(root)
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Storage("create upload root", err)
	}
	m := &Manager{fs: fs, root: root, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Root returns the shared upload root.
func (m *Manager) Root() string {
	return m.root
}

// Create allocates a fresh workspace with a unique token directory.
func (m *Manager) Create() (*Workspace, error) {
	id := uuid.New()
	token := hex.EncodeToString(id[:])
	dir := filepath.Join(m.root, token)

	if err := m.fs.Mkdir(dir, 0o700); err != nil {
		return nil, apperr.Storage("create workspace", err)
	}
	return &Workspace{
		manager: m,
		token:   token,
		dir:     dir,
	}, nil
}

// Workspace is an isolated set of temporary paths owned by one request.
// It is safe for concurrent use.
type Workspace struct {
	manager *Manager
	token   string
	dir     string

	mu       sync.Mutex
	paths    []string
	released bool
}

// Token returns the workspace's unique identifier.
func (w *Workspace) Token() string {
	return w.token
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the in-workspace path for the base of name.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Register records path for removal on Release. Paths outside the
// workspace are rejected.
func (w *Workspace) Register(path string) error {
	if !w.contains(path) {
		return apperr.Storage(fmt.Sprintf("path %q is outside workspace", path), nil)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return apperr.Storage("workspace already released", nil)
	}
	w.paths = append(w.paths, filepath.Clean(path))
	return nil
}

// Save writes r to name inside the workspace and returns the stored path.
// The path is registered as soon as the file exists.
func (w *Workspace) Save(name string, r io.Reader) (string, error) {
	path := w.Path(name)
	f, err := w.manager.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", apperr.Storage("create "+filepath.Base(path), err)
	}
	if err := w.Register(path); err != nil {
		f.Close()
		w.manager.fs.Remove(path)
		return "", err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", apperr.Storage("write "+filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return "", apperr.Storage("close "+filepath.Base(path), err)
	}
	return path, nil
}

// Mkdir creates and registers a scratch directory inside the workspace.
func (w *Workspace) Mkdir(name string) (string, error) {
	path := w.Path(name)
	if err := w.manager.fs.Mkdir(path, 0o700); err != nil {
		return "", apperr.Storage("create "+filepath.Base(path), err)
	}
	if err := w.Register(path); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens a file inside the workspace for reading.
func (w *Workspace) Open(path string) (afero.File, error) {
	if !w.contains(path) {
		return nil, apperr.Storage(fmt.Sprintf("path %q is outside workspace", path), nil)
	}
	f, err := w.manager.fs.Open(path)
	if err != nil {
		return nil, apperr.Storage("open "+filepath.Base(path), err)
	}
	return f, nil
}

// Paths returns a copy of the tracked paths.
func (w *Workspace) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.paths...)
}

// Released reports whether Release has run.
func (w *Workspace) Released() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.released
}

// Release removes every tracked path in reverse registration order and
// then the workspace directory. Failures are logged and reported to the
// cleanup hook but never returned. Calling Release more than once is a
// no-op.
func (w *Workspace) Release() {
	w.mu.Lock()
	if w.released {
		w.mu.Unlock()
		return
	}
	w.released = true
	paths := w.paths
	w.paths = nil
	w.mu.Unlock()

	for i := len(paths) - 1; i >= 0; i-- {
		w.remove(paths[i])
	}
	w.remove(w.dir)
}

func (w *Workspace) remove(path string) {
	err := w.manager.fs.RemoveAll(path)
	if err == nil || os.IsNotExist(err) {
		return
	}
	cerr := apperr.Cleanup(path, err)
	w.manager.logger.Warn().
		Err(cerr).
		Str("workspace", w.token).
		Str("path", path).
		Msg("workspace cleanup failed")
	if w.manager.onCleanupFailure != nil {
		w.manager.onCleanupFailure(path, err)
	}
}

func (w *Workspace) contains(path string) bool {
	rel, err := filepath.Rel(w.dir, filepath.Clean(path))
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
