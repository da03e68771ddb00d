package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cachesim/cachesim/pkg/models"
)

var errQuotaExhausted = errors.New("quota exhausted")

// Provider describes one remote scoring endpoint.
type Provider struct {
	Name              string
	URL               string
	APIKey            string
	Model             string
	Priority          int
	RequestsPerMinute int
}

// providerState tracks the rolling rate window and the quota latch.
type providerState struct {
	windowStart    time.Time
	windowCount    int
	quotaExhausted bool
	calls          int64
	failures       int64
}

// ChainScorer tries providers in priority order, falling back to the
// next on failure. A provider that answers HTTP 429 is latched out for
// the rest of the run; per-minute request budgets are enforced
// client-side so a run never hammers a throttled endpoint.
type ChainScorer struct {
	mu        sync.Mutex
	providers []Provider
	state     map[string]*providerState
	client    *http.Client

	total   int64
	success int64
	failed  int64
	sumMS   float64
}

// Stats summarizes chain activity for reporting.
type Stats struct {
	Total          int64            `json:"total"`
	Successful     int64            `json:"successful"`
	Failed         int64            `json:"failed"`
	MeanResponseMS float64          `json:"mean_response_ms"`
	ProviderUsage  map[string]int64 `json:"provider_usage"`
}

// NewChain creates a ChainScorer over the given providers, ordered by
// ascending priority.
func NewChain(providers []Provider) *ChainScorer {
	sorted := make([]Provider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	state := make(map[string]*providerState, len(sorted))
	for _, p := range sorted {
		state[p.Name] = &providerState{}
	}

	return &ChainScorer{
		providers: sorted,
		state:     state,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Score asks each usable provider in turn for a judgment. When every
// provider refuses, it returns a neutral medium judgment together with
// ErrAllProvidersFailed so callers can choose between degrading and
// aborting.
func (c *ChainScorer) Score(ctx context.Context, rec models.Record) (models.Judgment, error) {
	start := time.Now()
	c.mu.Lock()
	c.total++
	c.mu.Unlock()

	for _, p := range c.providers {
		if !c.allow(p) {
			continue
		}

		j, err := c.scoreOnce(ctx, p, rec)
		if err != nil {
			if errors.Is(err, errQuotaExhausted) {
				c.latch(p.Name)
				log.Printf("provider %s returned 429, trying next", p.Name)
			} else {
				c.noteFailure(p.Name)
				log.Printf("provider %s failed: %v, trying next", p.Name, err)
			}
			continue
		}

		j.Elapsed = time.Since(start)
		c.noteSuccess(p.Name, j.Elapsed)
		return j, nil
	}

	c.mu.Lock()
	c.failed++
	c.mu.Unlock()

	return models.Judgment{
		Quality: models.QualityMedium,
		Score:   60,
		Answer:  rec.BestAnswer,
		Model:   "fallback",
		Elapsed: time.Since(start),
	}, ErrAllProvidersFailed
}

// Stats returns a snapshot of chain activity.
func (c *ChainScorer) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	usage := make(map[string]int64, len(c.state))
	for name, st := range c.state {
		usage[name] = st.calls
	}

	s := Stats{
		Total:         c.total,
		Successful:    c.success,
		Failed:        c.failed,
		ProviderUsage: usage,
	}
	if c.success > 0 {
		s.MeanResponseMS = c.sumMS / float64(c.success)
	}
	return s
}

// allow reports whether the provider may be called right now, counting
// the call against its per-minute window.
func (c *ChainScorer) allow(p Provider) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state[p.Name]
	if st.quotaExhausted {
		return false
	}
	if p.RequestsPerMinute <= 0 {
		return true
	}

	now := time.Now()
	if now.Sub(st.windowStart) >= time.Minute {
		st.windowStart = now
		st.windowCount = 0
	}
	if st.windowCount >= p.RequestsPerMinute {
		return false
	}
	st.windowCount++
	return true
}

func (c *ChainScorer) latch(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state[name]
	st.quotaExhausted = true
	st.failures++
}

func (c *ChainScorer) noteFailure(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[name].failures++
}

func (c *ChainScorer) noteSuccess(name string, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.success++
	c.sumMS += float64(elapsed.Microseconds()) / 1000
	c.state[name].calls++
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChainScorer) scoreOnce(ctx context.Context, p Provider, rec models.Record) (models.Judgment, error) {
	prompt := fmt.Sprintf(
		"Rate the quality of this answer as HIGH, MEDIUM or LOW.\nQuestion: %s\n%s\nAnswer: %s",
		rec.Title, rec.Content, rec.BestAnswer,
	)
	body, err := json.Marshal(chatRequest{
		Model:    p.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return models.Judgment{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.Judgment{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Judgment{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.Judgment{}, errQuotaExhausted
	}
	if resp.StatusCode != http.StatusOK {
		return models.Judgment{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return models.Judgment{}, fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return models.Judgment{}, errors.New("empty response")
	}

	score := ratingScore(cr.Choices[0].Message.Content)
	return models.Judgment{
		Quality: models.QualityForScore(score),
		Score:   score,
		Answer:  rec.BestAnswer,
		Model:   p.Model,
	}, nil
}

// ratingScore maps a free-text rating onto fixed score bands. Anything
// unrecognized counts as a cautious medium.
func ratingScore(text string) float64 {
	t := strings.ToUpper(text)
	switch {
	case strings.Contains(t, "HIGH"):
		return 85
	case strings.Contains(t, "MEDIUM"):
		return 65
	case strings.Contains(t, "LOW"):
		return 35
	default:
		return 60
	}
}
