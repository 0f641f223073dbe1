package s3blob

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// multipartWriter is satisfied by *Writer; archives above minPartSize go
// through the multipart uploader when it is available.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, contentType string, partSize int64) error
}

// Archiver implements domain.ChainArchiver. Each ingestion writes two
// objects under archive/<SYMBOL>/<date>/:
//
//	<HHMMSS>_<source>.json.gz   raw upstream payload, gzipped
//	<HHMMSS>_legs.jsonl         normalized legs, one JSON object per line
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
}

// NewArchiver creates an archiver. reader may be nil when listing is not
// needed.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader) *Archiver {
	return &Archiver{writer: writer, reader: reader}
}

// ArchiveChain uploads the raw payload (when the provider kept one) and the
// normalized legs of snap.
func (a *Archiver) ArchiveChain(ctx context.Context, raw *domain.RawChain, snap domain.Snapshot) error {
	symbol := strings.ToUpper(snap.Quote.Symbol)
	ts := snap.Quote.Timestamp

	if raw != nil && len(raw.Body) > 0 {
		gz, err := gzipBytes(raw.Body)
		if err != nil {
			return fmt.Errorf("s3blob: archive %s: gzip: %w", symbol, err)
		}
		source := raw.Source
		if source == "" {
			source = "raw"
		}
		if err := a.put(ctx, archivePath(symbol, ts, source+".json.gz"), gz, "application/gzip"); err != nil {
			return err
		}
	}

	lines, err := marshalJSONL(snap.Legs)
	if err != nil {
		return fmt.Errorf("s3blob: archive %s: %w", symbol, err)
	}
	return a.put(ctx, archivePath(symbol, ts, "legs.jsonl"), lines, "application/x-ndjson")
}

// ListArchives lists the objects archived for symbol on day.
func (a *Archiver) ListArchives(ctx context.Context, symbol string, day time.Time) ([]domain.BlobInfo, error) {
	if a.reader == nil {
		return nil, fmt.Errorf("s3blob: list archives: no reader configured")
	}
	return a.reader.List(ctx, dayPrefix(strings.ToUpper(symbol), day))
}

// OpenArchive returns the object at path, which must lie under the archive
// of symbol. The caller closes the body.
func (a *Archiver) OpenArchive(ctx context.Context, symbol, path string) (io.ReadCloser, error) {
	if a.reader == nil {
		return nil, fmt.Errorf("s3blob: open archive: no reader configured")
	}
	prefix := "archive/" + strings.ToUpper(symbol) + "/"
	if !strings.HasPrefix(path, prefix) || strings.Contains(path, "..") {
		return nil, fmt.Errorf("s3blob: open archive %s: %w", path, domain.ErrNotFound)
	}
	return a.reader.Get(ctx, path)
}

func (a *Archiver) put(ctx context.Context, path string, data []byte, contentType string) error {
	if mw, ok := a.writer.(multipartWriter); ok && int64(len(data)) > minPartSize {
		return mw.PutMultipart(ctx, path, bytes.NewReader(data), contentType, minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(data), contentType)
}

func dayPrefix(symbol string, day time.Time) string {
	return fmt.Sprintf("archive/%s/%s/", symbol, day.Format(time.DateOnly))
}

// archivePath builds the key of one archived object, partitioned by symbol
// and exchange-local date.
//
//	archive/NIFTY/2024-10-20/153000_legs.jsonl
func archivePath(symbol string, ts time.Time, name string) string {
	return dayPrefix(symbol, ts) + ts.Format("150405") + "_" + name
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ domain.ChainArchiver = (*Archiver)(nil)
