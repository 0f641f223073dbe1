package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader reads and lists objects.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// ChainArchiver keeps an append-only record of every ingested chain: the raw
// upstream payload and the normalized legs.
type ChainArchiver interface {
	ArchiveChain(ctx context.Context, raw *RawChain, snap Snapshot) error
	ListArchives(ctx context.Context, symbol string, day time.Time) ([]BlobInfo, error)
	// OpenArchive returns one archived object of symbol by the path
	// ListArchives reported. Paths outside the symbol's archive yield
	// ErrNotFound.
	OpenArchive(ctx context.Context, symbol, path string) (io.ReadCloser, error)
}
