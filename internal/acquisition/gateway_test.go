package acquisition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/platform/httpx"
)

type fakeProvider struct {
	name  string
	raw   *domain.RawChain
	err   error
	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchChain(ctx context.Context, symbol string) (*domain.RawChain, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.raw, f.err
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func chain(source string) *domain.RawChain {
	return &domain.RawChain{Source: source, Records: &domain.RawRecords{UnderlyingValue: 100.0}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetch_AutoPrefersPrimary(t *testing.T) {
	primary := &fakeProvider{name: "p", raw: chain("p")}
	secondary := &fakeProvider{name: "s", raw: chain("s")}
	g := NewGateway(primary, secondary, domain.PreferenceAuto, testLogger())

	raw, err := g.Fetch(context.Background(), "nifty")
	require.NoError(t, err)
	assert.Equal(t, "p", raw.Source)
	assert.Equal(t, 0, secondary.Calls())
}

func TestFetch_AutoFallsBackOnError(t *testing.T) {
	primary := &fakeProvider{name: "p", err: &httpx.StatusError{Code: http.StatusBadGateway}}
	secondary := &fakeProvider{name: "s", raw: chain("s")}
	g := NewGateway(primary, secondary, domain.PreferenceAuto, testLogger())

	for i := 0; i < 3; i++ {
		raw, err := g.Fetch(context.Background(), "NIFTY")
		require.NoError(t, err)
		assert.Equal(t, "s", raw.Source)
	}
	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, 3, secondary.Calls())
}

func TestFetch_AutoFallsBackOnEmptyPayload(t *testing.T) {
	primary := &fakeProvider{name: "p", raw: &domain.RawChain{}}
	secondary := &fakeProvider{name: "s", raw: chain("s")}
	g := NewGateway(primary, secondary, domain.PreferenceAuto, testLogger())

	raw, err := g.Fetch(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, "s", raw.Source)
}

func TestFetch_AutoSecondaryFailureIsFinal(t *testing.T) {
	primary := &fakeProvider{name: "p", err: errors.New("down")}
	secondary := &fakeProvider{name: "s", err: &httpx.StatusError{Code: http.StatusServiceUnavailable}}
	g := NewGateway(primary, secondary, domain.PreferenceAuto, testLogger())

	_, err := g.Fetch(context.Background(), "NIFTY")
	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, "s", acqErr.Provider)
	assert.Equal(t, "NIFTY", acqErr.Symbol)
	assert.True(t, acqErr.Retryable)
}

func TestFetch_ForcedModes(t *testing.T) {
	primary := &fakeProvider{name: "p", err: &httpx.StatusError{Code: http.StatusUnauthorized}}
	secondary := &fakeProvider{name: "s", raw: chain("s")}
	g := NewGateway(primary, secondary, domain.PreferencePrimary, testLogger())

	_, err := g.Fetch(context.Background(), "NIFTY")
	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, "p", acqErr.Provider)
	assert.False(t, acqErr.Retryable)
	assert.Equal(t, 0, secondary.Calls(), "PRIMARY mode must not fall back")

	require.NoError(t, g.SetPreference(domain.PreferenceSecondary))
	raw, err := g.Fetch(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, "s", raw.Source)
	assert.Equal(t, 1, primary.Calls())
}

func TestFetch_MissingProvider(t *testing.T) {
	g := NewGateway(nil, nil, domain.PreferenceSecondary, testLogger())
	_, err := g.Fetch(context.Background(), "NIFTY")
	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, "secondary", acqErr.Provider)
}

func TestSetPreference(t *testing.T) {
	g := NewGateway(nil, nil, "", testLogger())
	assert.Equal(t, domain.PreferenceAuto, g.Preference())

	require.NoError(t, g.SetPreference(domain.PreferencePrimary))
	assert.Equal(t, domain.PreferencePrimary, g.Preference())

	assert.Error(t, g.SetPreference("BOGUS"))
	assert.Equal(t, domain.PreferencePrimary, g.Preference())
}

func TestSetPreference_ConcurrentWithFetch(t *testing.T) {
	primary := &fakeProvider{name: "p", raw: chain("p")}
	secondary := &fakeProvider{name: "s", raw: chain("s")}
	g := NewGateway(primary, secondary, domain.PreferenceAuto, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := g.Fetch(context.Background(), "NIFTY")
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			prefs := []domain.Preference{domain.PreferencePrimary, domain.PreferenceSecondary, domain.PreferenceAuto}
			assert.NoError(t, g.SetPreference(prefs[i%3]))
		}(i)
	}
	wg.Wait()
}
