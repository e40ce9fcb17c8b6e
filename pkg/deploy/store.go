package deploy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/deploy-client/internal/constants"
)

// StoreType represents the type of root document store.
type StoreType string

const (
	// StoreTypeNone keeps the root document in process only.
	StoreTypeNone StoreType = "none"

	// StoreTypeFile persists the root document to a YAML file.
	StoreTypeFile StoreType = "file"

	// StoreTypeNATS shares the root document through a NATS KV bucket.
	StoreTypeNATS StoreType = "nats"
)

// RootDocumentStore is a second-tier store for the root document, shared
// across sessions or processes. Load returns ErrRootDocumentNotStored when
// nothing is stored.
type RootDocumentStore interface {
	Load(ctx context.Context) (*RootDocument, error)
	Save(ctx context.Context, doc *RootDocument) error
	Clear(ctx context.Context) error
}

// StoreConfig configures the root document store.
type StoreConfig struct {
	// Type is the store backend type
	Type StoreType

	// File store configuration
	File *FileStoreConfig

	// NATS KV store configuration
	NATS *NATSKVConfig
}

// FileStoreConfig configures the file store.
type FileStoreConfig struct {
	Path string
}

// NewRootDocumentStore creates a store from configuration. A nil config
// yields a no-op store.
func NewRootDocumentStore(ctx context.Context, config *StoreConfig) (RootDocumentStore, error) {
	if config == nil {
		return NewNoOpStore(), nil
	}

	switch config.Type {
	case StoreTypeNone, "":
		return NewNoOpStore(), nil

	case StoreTypeFile:
		if config.File == nil || config.File.Path == "" {
			return nil, ErrFileStorePathRequired
		}

		return NewFileStore(config.File.Path), nil

	case StoreTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATSKVStore(ctx, config.NATS)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStoreType, config.Type)
	}
}

// NoOpStore stores nothing.
type NoOpStore struct{}

// NewNoOpStore creates a new no-op store.
func NewNoOpStore() *NoOpStore {
	return &NoOpStore{}
}

// Load always reports that nothing is stored.
func (s *NoOpStore) Load(context.Context) (*RootDocument, error) {
	return nil, ErrRootDocumentNotStored
}

// Save does nothing.
func (s *NoOpStore) Save(context.Context, *RootDocument) error {
	return nil
}

// Clear does nothing.
func (s *NoOpStore) Clear(context.Context) error {
	return nil
}

// FileStore keeps the root document in a YAML file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path)}
}

// Load reads the stored document.
func (s *FileStore) Load(context.Context) (*RootDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrRootDocumentNotStored
	}

	if err != nil {
		return nil, fmt.Errorf("reading root document file: %w", err)
	}

	return ParseRootDocumentYAML(data)
}

// Save writes the document, creating the parent directory when needed.
func (s *FileStore) Save(_ context.Context, doc *RootDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding root document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.MkdirAll(filepath.Dir(s.path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("creating root document directory: %w", err)
	}

	err = os.WriteFile(s.path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("writing root document file: %w", err)
	}

	return nil
}

// Clear removes the file.
func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing root document file: %w", err)
	}

	return nil
}
