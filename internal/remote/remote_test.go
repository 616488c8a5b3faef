package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livinlefevreloca/lectio/internal/liturgy"
)

const snapshotJSON = `{
	"day": {"id": "d-2025-01-01", "season": "Christmas", "title": "Mary, Mother of God", "color": "white"},
	"readings": [
		{"id": "r1", "kind": "first", "citation": "Num 6:22-27", "body": "The Lord bless you"},
		{"id": "r2", "kind": "psalm", "citation": "Ps 67", "body": "May God bless us"}
	]
}`

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func jan1() time.Time {
	return time.Date(2025, 1, 1, 9, 30, 0, 0, time.Local)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"empty base url", func(c *Config) { c.BaseURL = "" }, true},
		{"relative base url", func(c *Config) { c.BaseURL = "/days" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, true},
		{"max below initial", func(c *Config) { c.MaxBackoff = time.Millisecond }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProbeAddress(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://example.org", "example.org:80"},
		{"https://example.org/api", "example.org:443"},
		{"http://127.0.0.1:8081", "127.0.0.1:8081"},
	}
	for _, tt := range tests {
		got, err := ProbeAddress(tt.url)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ProbeAddress("not a url")
	assert.Error(t, err)
}

func TestHTTPSource_FetchNormalizesSnapshot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/days/2025-01-01", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(snapshotJSON))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(testConfig(srv.URL), nil, nil)
	require.NoError(t, err)

	snap, err := src.Fetch(context.Background(), jan1())
	require.NoError(t, err)

	assert.Equal(t, "2025-01-01", snap.Day.Date)
	assert.Equal(t, "d-2025-01-01", snap.Day.ID)
	require.Len(t, snap.Readings, 2)
	for i, r := range snap.Readings {
		assert.Equal(t, "2025-01-01", r.DayDate)
		assert.Equal(t, i+1, r.Order)
	}
}

func TestHTTPSource_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(snapshotJSON))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(testConfig(srv.URL), nil, nil)
	require.NoError(t, err)

	snap, err := src.Fetch(context.Background(), jan1())
	require.NoError(t, err)
	assert.Len(t, snap.Readings, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSource_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(testConfig(srv.URL), nil, nil)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), jan1())
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "2025-01-01", fe.Date)
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSource_NotFoundIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(testConfig(srv.URL), nil, nil)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), jan1())
	require.Error(t, err)
	assert.True(t, IsFetchError(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPSource_RejectsSnapshotForOtherDate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"day": {"id": "x", "date": "2025-02-02"}, "readings": []}`))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(testConfig(srv.URL), nil, nil)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), jan1())
	assert.True(t, IsFetchError(err))
}

func TestHTTPSource_CanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(snapshotJSON))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(testConfig(srv.URL), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = src.Fetch(ctx, jan1())
	assert.True(t, IsFetchError(err))
}

func TestFetchError_Message(t *testing.T) {
	err := &FetchError{Date: liturgy.DateKey(jan1()), StatusCode: 503, Err: errors.New("down")}
	assert.Equal(t, "fetch 2025-01-01: status 503: down", err.Error())
	assert.ErrorContains(t, &FetchError{Date: "2025-01-01", Err: errors.New("refused")}, "refused")
}
