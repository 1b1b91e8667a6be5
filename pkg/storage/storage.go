package storage

import (
	"context"
	"time"
)

// Visibility is the access level an uploaded object is stored with
type Visibility int

const (
	// Private objects are readable only with the store credentials
	Private Visibility = iota
	// PublicRead objects are world readable
	PublicRead
)

func (v Visibility) String() string {
	if v == PublicRead {
		return "public-read"
	}
	return "private"
}

// ObjectStore is a remote location an artifact is uploaded to
type ObjectStore interface {
	// Name returns a human-readable name for this store (e.g., "s3:acme-backups-dev")
	Name() string

	// Type returns the backend type (s3, minio, backblaze, ssh, local)
	Type() string

	// Put uploads a local file to key, replacing any existing object
	// sourcePath: absolute path to local file
	// key: object key inside the bucket (e.g., "acme-dev/05-03-2024.sql.gz")
	Put(ctx context.Context, sourcePath string, key string, vis Visibility) error

	// Stat returns metadata about a stored object, ErrNotFound if it is absent
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Close releases resources (connections, sessions)
	Close() error
}

// ObjectInfo represents metadata about a stored object
type ObjectInfo struct {
	Key     string    // Key inside the bucket
	Size    int64     // Size in bytes
	ModTime time.Time // Last modification time
}

// Config represents what is needed to open a store for one run
type Config struct {
	Type      string                 `json:"type"`    // Backend type: s3, minio, backblaze, ssh, local
	Bucket    string                 `json:"bucket"`  // Resolved bucket (or remote directory)
	AccessKey string                 `json:"-"`       // Credential pair from the provider document
	SecretKey string                 `json:"-"`       //
	Options   map[string]interface{} `json:"options"` // Backend-specific options
}

// Name is the display name of the store described by cfg
func (c Config) Name() string {
	return c.Type + ":" + c.Bucket
}
