// Package homeassistant talks to the Home Assistant REST API: current entity
// state, forecast attributes and chunked state history.
package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"sensor_dashboard/internal/logger"
	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/timeutil"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultCurrentTimeout = 10 * time.Second
	defaultHistoryTimeout = 30 * time.Second
	defaultChunkSpan      = 10 * 24 * time.Hour

	// consecutive failures before the breaker opens
	breakerTripAfter = 5
	breakerOpenFor   = time.Minute

	maxBodyBytes = 32 << 20
)

// Config holds connection settings for the Home Assistant API.
type Config struct {
	BaseURL        string
	Token          string
	CurrentTimeout time.Duration
	HistoryTimeout time.Duration
	ChunkSpan      time.Duration // max span of one history request
	RequestDelay   time.Duration // pause between a history response and the next request
}

// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	token     string
	current   *http.Client
	history   *http.Client
	chunkSpan time.Duration
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	log       *logger.Logger
}

// NewClient builds a client. Zero durations fall back to defaults; a zero
// RequestDelay disables spacing between history requests.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.CurrentTimeout <= 0 {
		cfg.CurrentTimeout = defaultCurrentTimeout
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = defaultHistoryTimeout
	}
	if cfg.ChunkSpan <= 0 {
		cfg.ChunkSpan = defaultChunkSpan
	}

	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "homeassistant",
		MaxRequests: 1,
		Timeout:     breakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= breakerTripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit_breaker_state_change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:   normalizeBaseURL(cfg.BaseURL),
		token:     cfg.Token,
		current:   &http.Client{Timeout: cfg.CurrentTimeout},
		history:   &http.Client{Timeout: cfg.HistoryTimeout},
		chunkSpan: cfg.ChunkSpan,
		limiter:   rate.NewLimiter(limit, 1),
		breaker:   cb,
		log:       log,
	}
}

// normalizeBaseURL accepts both "http://host:8123" and "http://host:8123/api".
func normalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	u = strings.TrimSuffix(u, "/api")
	return strings.TrimRight(u, "/")
}

// Ping checks that the API is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, c.current, "ping", "", "/api/", nil)
	return err
}

// FetchCurrent returns the current numeric state of entityID. Any error means
// the reading is temporarily unavailable.
func (c *Client) FetchCurrent(ctx context.Context, entityID string) (*models.SeriesPoint, error) {
	rec, err := c.fetchState(ctx, "current", entityID)
	if err != nil {
		return nil, err
	}
	p, err := rec.point()
	if err != nil {
		return nil, &FetchError{Op: "current", EntityID: entityID, Err: err}
	}
	return &p, nil
}

// FetchForecast returns the raw "forecast" attribute of a weather entity.
func (c *Client) FetchForecast(ctx context.Context, entityID string) (json.RawMessage, error) {
	rec, err := c.fetchState(ctx, "forecast", entityID)
	if err != nil {
		return nil, err
	}
	raw, ok := rec.Attributes["forecast"]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, &FetchError{Op: "forecast", EntityID: entityID, Err: ErrNoValue}
	}
	return raw, nil
}

func (c *Client) fetchState(ctx context.Context, op, entityID string) (stateRecord, error) {
	body, err := c.get(ctx, c.current, op, entityID, "/api/states/"+url.PathEscape(entityID), nil)
	if err != nil {
		return stateRecord{}, err
	}
	var rec stateRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return stateRecord{}, &FetchError{Op: op, EntityID: entityID, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	return rec, nil
}

// HistoryResult is the outcome of a chunked history fetch. Points holds
// whatever the successful chunks returned, sorted and without duplicate
// timestamps.
type HistoryResult struct {
	Points  []models.SeriesPoint
	Chunks  int
	Failed  []*FetchError
	Skipped int // records without a usable value or timestamp
}

// Succeeded is the number of chunks fetched without error.
func (r HistoryResult) Succeeded() int { return r.Chunks - len(r.Failed) }

// Err joins all chunk failures, or returns nil.
func (r HistoryResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// FetchHistory requests the state history of entityID over window, one
// request per chunk. A failed chunk is recorded and the remaining chunks are
// still requested; nothing is retried here.
func (c *Client) FetchHistory(ctx context.Context, entityID string, window models.FetchWindow) HistoryResult {
	chunks := window.UTC().Split(c.chunkSpan)
	res := HistoryResult{Chunks: len(chunks)}

	for i, chunk := range chunks {
		chunk := chunk
		if err := c.limiter.Wait(ctx); err != nil {
			for _, rest := range chunks[i:] {
				rest := rest
				res.Failed = append(res.Failed, &FetchError{Op: "history", EntityID: entityID, Window: &rest, Err: err})
			}
			break
		}

		points, skipped, err := c.fetchChunk(ctx, entityID, chunk)
		// the next request waits a full delay counted from this response
		c.limiter.Reserve()
		if err != nil {
			var fe *FetchError
			if !errors.As(err, &fe) {
				fe = &FetchError{Op: "history", EntityID: entityID, Window: &chunk, Err: err}
			}
			res.Failed = append(res.Failed, fe)
			c.log.Warnw("history_chunk_failed",
				"entity_id", entityID,
				"chunk", i+1,
				"chunks", len(chunks),
				"start", timeutil.FormatStorage(chunk.Start),
				"end", timeutil.FormatStorage(chunk.End),
				"err", err,
			)
			continue
		}

		res.Skipped += skipped
		res.Points = append(res.Points, points...)
		c.log.Debugw("history_chunk_fetched",
			"entity_id", entityID,
			"chunk", i+1,
			"chunks", len(chunks),
			"points", len(points),
		)
	}

	res.Points = sortAndDedupe(res.Points)
	return res
}

func (c *Client) fetchChunk(ctx context.Context, entityID string, w models.FetchWindow) ([]models.SeriesPoint, int, error) {
	path := "/api/history/period/" + url.PathEscape(timeutil.FormatStorage(w.Start))
	q := url.Values{}
	q.Set("filter_entity_id", entityID)
	q.Set("end_time", timeutil.FormatStorage(w.End))

	body, err := c.get(ctx, c.history, "history", entityID, path, q)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Window = &w
		}
		return nil, 0, err
	}

	points, skipped, err := decodeHistory(body, entityID)
	if err != nil {
		return nil, 0, &FetchError{Op: "history", EntityID: entityID, Window: &w, Err: err}
	}
	return points, skipped, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("status %d", e.code) }

// get performs one authenticated GET through the circuit breaker and returns
// the body of a 200 response.
func (c *Client) get(ctx context.Context, hc *http.Client, op, entityID, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			return nil, &statusError{code: resp.StatusCode}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	})
	if err != nil {
		fe := &FetchError{Op: op, EntityID: entityID, Err: err}
		var se *statusError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			fe.Err = ErrCircuitOpen
		case errors.As(err, &se):
			fe.StatusCode = se.code
			fe.Err = ErrUnexpectedStatus
		}
		return nil, fe
	}
	return out.([]byte), nil
}

func sortAndDedupe(points []models.SeriesPoint) []models.SeriesPoint {
	if len(points) < 2 {
		return points
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	out := points[:1]
	for _, p := range points[1:] {
		if p.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, p)
	}
	return out
}
