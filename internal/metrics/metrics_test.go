package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

func TestSanitizeHost(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://Jobs.Example.com/path", "jobs.example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeHost(tc.input); got != tc.expected {
				t.Errorf("SanitizeHost(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObservePage(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObservePage(jobs.PageOutcome{Records: []jobs.Record{{}, {}}, RecordsSaved: 1, RecordsUnsaved: 1, Duration: time.Second})
	r.ObservePage(jobs.PageOutcome{Err: errors.New("boom")})
	r.ObservePage(jobs.PageOutcome{})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.pagesTotal.WithLabelValues(PageSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pagesTotal.WithLabelValues(PageFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pagesTotal.WithLabelValues(PageEmpty)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rawRecordsTotal.WithLabelValues("saved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rawRecordsTotal.WithLabelValues("unsaved")))
}

func TestObserveUpsertAndTransform(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveUpsert(jobs.UpsertResult{Inserted: 2, Updated: 1, Failed: 1}, 3)
	r.ObserveTransform(4, 1, 0)
	r.ObserveRateLimitDelay("https://api.example.com", 50*time.Millisecond)
	r.MarkSuccess("load", time.Unix(1700000000, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.loadRecordsTotal.WithLabelValues("inserted")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.loadCollisionsTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.transformRecordsTotal.WithLabelValues("written")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastSuccessTimestamp.WithLabelValues("load")))

	count, err := testutil.GatherAndCount(r.Registry(), "jobhunter_rate_limit_delays_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPush(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	r := New()
	r.MarkSuccess("extract", time.Now())
	require.NoError(t, r.Push(context.Background(), srv.URL, "jobhunter_test"))
	assert.Equal(t, int32(1), hits.Load())
	assert.True(t, strings.HasSuffix(path.Load().(string), "/metrics/job/jobhunter_test"))

	require.NoError(t, r.Push(context.Background(), "", "ignored"))
	assert.Equal(t, int32(1), hits.Load())
}
