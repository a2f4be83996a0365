// Package storage opens contact import files and keeps import reports.
// Files live either in S3 or, for local development, under a directory on
// disk that mirrors the bucket/key layout.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// MaxImportSize caps the bytes read from a single import object.
const MaxImportSize = 20 << 20

// ErrObjectNotFound is returned when the bucket/key does not exist.
var ErrObjectNotFound = errors.New("storage object not found")

// ErrInvalidKey is returned for empty or escaping keys.
var ErrInvalidKey = errors.New("invalid storage key")

// Store reads import files and writes JSON reports.
type Store interface {
	// Open returns the object body, capped at MaxImportSize.
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// SaveJSON writes data as indented JSON.
	SaveJSON(ctx context.Context, bucket, key string, data any) error
}

// Config selects and configures a Store.
type Config struct {
	Type      string `yaml:"type"` // "s3" or "local"
	LocalPath string `yaml:"local_path"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Profile   string `yaml:"profile"`
}

// New builds the Store named by cfg.Type.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "s3":
		return NewS3Store(ctx, cfg.Region, cfg.Profile)
	case "", "local":
		return NewLocalStore(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// ImportPrefix is the key prefix of every object an owner may import from
// and of that owner's import reports.
func ImportPrefix(ownerID string) string {
	return "imports/" + ownerID + "/"
}

// OwnsKey reports whether key names an object under ownerID's import
// prefix. Keys with dot segments or repeated slashes never match.
func OwnsKey(ownerID, key string) bool {
	if ownerID == "" || strings.ContainsAny(ownerID, `/\`) {
		return false
	}
	prefix := ImportPrefix(ownerID)
	if len(key) <= len(prefix) || !strings.HasPrefix(key, prefix) {
		return false
	}
	return path.Clean("/"+key) == "/"+key
}

// ReportKey is where the report of an import started at t is saved.
func ReportKey(ownerID string, t time.Time) string {
	return ImportPrefix(ownerID) + t.UTC().Format("2006/01/02/150405") + ".json"
}

// LocalStore keeps objects under basePath/bucket/key.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if basePath == "" {
		basePath = "./data"
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (s *LocalStore) path(bucket, key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if bucket == "" || key == "" {
		return "", ErrInvalidKey
	}
	if strings.ContainsAny(bucket, `/\`) || bucket == ".." {
		return "", ErrInvalidKey
	}
	root := filepath.Join(s.basePath, bucket)
	p := filepath.Join(root, filepath.FromSlash(key))
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrInvalidKey
	}
	return p, nil
}

func (s *LocalStore) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}
	return limitReadCloser(f), nil
}

func (s *LocalStore) SaveJSON(_ context.Context, bucket, key string, data any) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(p, body, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

func limitReadCloser(rc io.ReadCloser) io.ReadCloser {
	return limitedBody{Reader: io.LimitReader(rc, MaxImportSize), Closer: rc}
}
