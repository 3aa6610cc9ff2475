// Package fuzzy implements the optional semantic-similarity collaborator
// used by the matcher's last tier. It speaks to an OpenAI-compatible
// chat endpoint, batches comparisons, retries transient failures with
// backoff, and caches scores by descriptor pair so identical comparisons
// are never re-issued within or across runs. The collaborator being
// down degrades the affected comparisons, never the run.
package fuzzy

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/cache"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/match"
)

// maxResponseSize limits the collaborator response body.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// RetryConfig holds retry settings for collaborator requests.
type RetryConfig struct {
	// MaxAttempts is the maximum attempts per batch.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        10 * time.Second,
	}
}

// Client scores constraint description pairs for semantic similarity.
// It implements match.Scorer.
type Client struct {
	cfg         config.FuzzyConfig
	httpClient  *http.Client
	retryConfig RetryConfig
	store       cache.Cache
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithCache sets the score cache. Without one, every comparison goes to
// the collaborator.
func WithCache(store cache.Cache) Option {
	return func(client *Client) {
		client.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a collaborator client.
func NewClient(cfg config.FuzzyConfig, opts ...Option) *Client {
	c := &Client{
		cfg:         cfg,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pairKey is the cache key for one comparison: a hash over the
// normalized descriptor pair.
func pairKey(p match.Pair) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(p.Spec) + "\x00" + strings.TrimSpace(p.Code)))
	return hex.EncodeToString(h[:])
}

// ScoreBatch returns a similarity score in [0,1] for each pair. Cached
// pairs are answered locally; the rest go to the collaborator in one
// request. Any failure is reported as constraint.ErrFuzzyUnavailable so
// the matcher can degrade the comparisons.
func (c *Client) ScoreBatch(ctx context.Context, pairs []match.Pair) ([]float64, error) {
	scores := make([]float64, len(pairs))
	var missIdx []int
	var missPairs []match.Pair

	for i, p := range pairs {
		if c.store != nil {
			if raw, ok, err := c.store.Get(cache.NamespaceFuzzy, pairKey(p)); err == nil && ok {
				if s, perr := strconv.ParseFloat(string(raw), 64); perr == nil {
					scores[i] = s
					continue
				}
			}
		}
		missIdx = append(missIdx, i)
		missPairs = append(missPairs, p)
	}

	if len(missPairs) == 0 {
		return scores, nil
	}

	fetched, err := c.scoreRemote(ctx, missPairs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", constraint.ErrFuzzyUnavailable, err)
	}

	for j, idx := range missIdx {
		scores[idx] = fetched[j]
		if c.store != nil {
			key := pairKey(missPairs[j])
			value := strconv.FormatFloat(fetched[j], 'f', 4, 64)
			if err := c.store.Set(cache.NamespaceFuzzy, key, []byte(value)); err != nil {
				c.logger.Debug("Failed to cache fuzzy score", "error", err)
			}
		}
	}

	return scores, nil
}

// chatRequest and chatResponse mirror the OpenAI-compatible wire shapes.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You compare pairs of data-validation constraint descriptions and score how likely each pair enforces the same rule. Respond with only a JSON array of numbers between 0 and 1, one per pair, in input order.`

// scoreRemote sends one batched request with retry and backoff.
func (c *Client) scoreRemote(ctx context.Context, pairs []match.Pair) ([]float64, error) {
	requestID := uuid.New().String()

	var prompt strings.Builder
	for i, p := range pairs {
		fmt.Fprintf(&prompt, "%d. spec: %q vs code: %q\n", i+1, p.Spec, p.Code)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt.String()},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("marshal request: %w", err))
	}

	backoff := c.retryConfig.BackoffBase
	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Debug("Retrying fuzzy collaborator request",
				"request_id", requestID, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, NewTransientError(ctx.Err())
			case <-time.After(backoff):
			}
			backoff = min(time.Duration(float64(backoff)*c.retryConfig.BackoffMultiplier), c.retryConfig.MaxBackoff)
		}

		scores, err := c.doRequest(ctx, body, len(pairs))
		if err == nil {
			return scores, nil
		}
		lastErr = err
		if IsFatal(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// doRequest performs a single HTTP call and parses the score array.
func (c *Client) doRequest(ctx context.Context, body []byte, want int) ([]float64, error) {
	url := strings.TrimSuffix(c.cfg.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("collaborator request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewTransientError(fmt.Errorf("collaborator status %d", resp.StatusCode))
	default:
		return nil, NewFatalError(fmt.Errorf("collaborator status %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, NewFatalError(fmt.Errorf("parse response envelope: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return nil, NewFatalError(fmt.Errorf("collaborator returned no choices"))
	}

	scores, err := parseScores(parsed.Choices[0].Message.Content, want)
	if err != nil {
		return nil, NewFatalError(err)
	}
	return scores, nil
}

// parseScores extracts the JSON score array from the collaborator's
// reply, tolerating surrounding prose or code fences.
func parseScores(content string, want int) ([]float64, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no score array in collaborator reply")
	}

	var scores []float64
	if err := json.Unmarshal([]byte(content[start:end+1]), &scores); err != nil {
		return nil, fmt.Errorf("parse score array: %w", err)
	}
	if len(scores) != want {
		return nil, fmt.Errorf("collaborator returned %d scores, want %d", len(scores), want)
	}
	for i, s := range scores {
		if math.IsNaN(s) {
			return nil, fmt.Errorf("score %d is NaN", i)
		}
		scores[i] = math.Min(math.Max(s, 0), 1)
	}
	return scores, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
