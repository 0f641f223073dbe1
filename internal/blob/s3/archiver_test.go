package s3blob

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBlobs) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = b
	f.types[path] = contentType
	return nil
}

func (f *fakeBlobs) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeBlobs) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BlobInfo
	for p, b := range f.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	return out, nil
}

func TestArchiveChain(t *testing.T) {
	blobs := newFakeBlobs()
	a := NewArchiver(blobs, blobs)

	ts := time.Date(2024, 10, 20, 15, 30, 0, 0, time.UTC)
	snap := domain.Snapshot{
		Quote: domain.UnderlyingQuote{Symbol: "nifty", Value: 19500, Timestamp: ts},
		Legs: []domain.OptionLeg{
			{Symbol: "NIFTY", StrikePrice: 19500, OptionType: domain.OptionTypeCall, OI: 10},
			{Symbol: "NIFTY", StrikePrice: 19500, OptionType: domain.OptionTypePut, OI: 20},
		},
	}
	raw := &domain.RawChain{Source: "nse", Body: []byte(`{"records":{}}`)}

	require.NoError(t, a.ArchiveChain(context.Background(), raw, snap))

	rawPath := "archive/NIFTY/2024-10-20/153000_nse.json.gz"
	legsPath := "archive/NIFTY/2024-10-20/153000_legs.jsonl"
	require.Contains(t, blobs.objects, rawPath)
	require.Contains(t, blobs.objects, legsPath)
	assert.Equal(t, "application/gzip", blobs.types[rawPath])

	zr, err := gzip.NewReader(bytes.NewReader(blobs.objects[rawPath]))
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, `{"records":{}}`, string(body))

	sc := bufio.NewScanner(bytes.NewReader(blobs.objects[legsPath]))
	lines := 0
	for sc.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)

	infos, err := a.ListArchives(context.Background(), "NIFTY", ts)
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	rc, err := a.OpenArchive(context.Background(), "nifty", legsPath)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, blobs.objects[legsPath], got)

	_, err = a.OpenArchive(context.Background(), "BANKNIFTY", legsPath)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = a.OpenArchive(context.Background(), "NIFTY", "archive/NIFTY/../TCS/x.json.gz")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArchiveChain_NoRawBody(t *testing.T) {
	blobs := newFakeBlobs()
	a := NewArchiver(blobs, nil)

	snap := domain.Snapshot{Quote: domain.UnderlyingQuote{Symbol: "TCS", Timestamp: time.Now()}}
	require.NoError(t, a.ArchiveChain(context.Background(), &domain.RawChain{Source: "demo"}, snap))
	assert.Len(t, blobs.objects, 1)

	_, err := a.ListArchives(context.Background(), "TCS", time.Now())
	assert.Error(t, err)
	_, err = a.OpenArchive(context.Background(), "TCS", "archive/TCS/x")
	assert.Error(t, err)
}
