package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/viola622/Flowise/internal/domain"
)

const datasourceDir = "datasource"

// Manager owns <root>/datasource/<store> folders.
type Manager struct {
	root string
}

// NewManager creates a Manager rooted at root.
func NewManager(root string) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root %q: %w", root, err)
	}
	return &Manager{root: abs}, nil
}

// Root returns the absolute storage root.
func (m *Manager) Root() string { return m.root }

// StoreDir returns the folder for a store name without touching the filesystem.
func (m *Manager) StoreDir(name string) string {
	return filepath.Join(m.root, datasourceDir, ConvertToValidFilename(name))
}

// CreateStoreDir creates the store folder. An existing folder yields ErrAlreadyExists.
func (m *Manager) CreateStoreDir(name string) (string, error) {
	if err := os.MkdirAll(filepath.Join(m.root, datasourceDir), 0o750); err != nil {
		return "", fmt.Errorf("create datasource root: %w", err)
	}
	dir := m.StoreDir(name)
	if err := os.Mkdir(dir, 0o750); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("folder %s: %w", filepath.Base(dir), domain.ErrAlreadyExists)
		}
		return "", fmt.Errorf("create store folder: %w", err)
	}
	return dir, nil
}

// RemoveStoreDir deletes the store folder and its contents.
func (m *Manager) RemoveStoreDir(name string) error {
	if err := os.RemoveAll(m.StoreDir(name)); err != nil {
		return fmt.Errorf("remove store folder: %w", err)
	}
	return nil
}

// OpenFile opens fileName inside the store folder. Paths escaping the folder are rejected.
func (m *Manager) OpenFile(storeName, fileName string) (io.ReadSeekCloser, error) {
	if fileName == "" || filepath.IsAbs(fileName) || !filepath.IsLocal(fileName) {
		return nil, fmt.Errorf("file %q outside store folder: %w", fileName, domain.ErrInvalidSchema)
	}
	f, err := os.Open(filepath.Join(m.StoreDir(storeName), fileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file %q: %w", fileName, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("open %q: %w", fileName, err)
	}
	return f, nil
}
