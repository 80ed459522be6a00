// Package rapidapi implements jobs.Fetcher against the LinkedIn job search
// API published on RapidAPI, using a gocolly collector per request.
package rapidapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobhunter/internal/jobs"
	"github.com/JakeFAU/jobhunter/internal/policy/retry"
)

const maxErrorBody = 512

// Config controls the API client.
type Config struct {
	BaseURL   string
	Host      string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

// Waiter throttles outbound requests.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// RetryPolicy decides whether a failed attempt is repeated.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Fetcher retrieves one page of listings per call.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       Waiter
	retry         RetryPolicy
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type searchRequest struct {
	SearchTerms string `json:"search_terms"`
	Location    string `json:"location"`
	Page        string `json:"page"`
}

type pageResult struct {
	status int
	body   []byte
}

// New builds a Fetcher. limiter and policy may be nil.
func New(cfg Config, limiter Waiter, policy RetryPolicy, logger *zap.Logger) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rapidapi: base url is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("rapidapi: api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = retry.NewExponentialPolicy(0)
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		limiter:       limiter,
		retry:         policy,
		logger:        logger,
	}, nil
}

// Fetch requests the page named by task. The page index is zero-based; the
// API numbers pages from one.
func (f *Fetcher) Fetch(ctx context.Context, task jobs.PageTask) ([]jobs.Record, error) {
	payload, err := json.Marshal(searchRequest{
		SearchTerms: task.SearchTerm,
		Location:    task.Location,
		Page:        strconv.Itoa(task.Page + 1),
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	for attempt := 1; ; attempt++ {
		records, err := f.fetchOnce(ctx, payload)
		if err == nil {
			return records, nil
		}
		if !f.retry.ShouldRetry(err, attempt) {
			return nil, err
		}
		wait := f.retry.Backoff(attempt)
		f.logger.Debug("retrying page request",
			zap.String("task", task.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("page request canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, payload []byte) ([]jobs.Record, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, f.cfg.BaseURL); err != nil {
			return nil, err
		}
	}

	var (
		result   pageResult
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	configureCollectorHooks(collector, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, payload, &fetchErr); err != nil {
		return nil, err
	}
	records, err := decodeRecords(result.body)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	return records, nil
}

func configureCollectorHooks(hooks collectorHooks, result *pageResult, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = pageResult{
			status: r.StatusCode,
			body:   append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			*fetchErr = &retry.StatusError{StatusCode: r.StatusCode, Body: truncate(r.Body)}
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, payload []byte, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Request(http.MethodPost, f.cfg.BaseURL, bytes.NewReader(payload), nil, f.headers())
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("page request canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("page request failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("page request failed: %w", err)
		}
		return nil
	}
}

func (f *Fetcher) headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-RapidAPI-Key", f.cfg.APIKey)
	if f.cfg.Host != "" {
		h.Set("X-RapidAPI-Host", f.cfg.Host)
	}
	return h
}

// decodeRecords accepts a bare array of listings or an object wrapping one
// under "data". Any other shape fails the whole page.
func decodeRecords(body []byte) ([]jobs.Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}
	switch body[0] {
	case '[':
		var records []jobs.Record
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("decode listings: %w", err)
		}
		return records, nil
	case '{':
		var envelope struct {
			Data    []jobs.Record `json:"data"`
			Message string        `json:"message"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decode listings: %w", err)
		}
		if envelope.Data == nil {
			if envelope.Message != "" {
				return nil, fmt.Errorf("api returned message: %s", envelope.Message)
			}
			return nil, errors.New("api response has no listings array")
		}
		return envelope.Data, nil
	default:
		return nil, fmt.Errorf("unexpected response body: %s", truncate(body))
	}
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
