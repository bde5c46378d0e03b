package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"stridestats/internal/logging"
	"stridestats/internal/observability"
)

const (
	defaultBaseURL = "https://www.strava.com/api/v3"

	// perPage is Strava's maximum page size for /athlete/activities.
	perPage = 200

	// maxPages bounds the backward-pagination loop (~10,000 activities).
	maxPages = 50
)

// Default retry settings
const (
	defaultMaxRetries     = 5
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 5 * time.Minute
)

// ErrUnauthorized indicates the access token was rejected by the API.
var ErrUnauthorized = errors.New("strava: unauthorized")

// ErrRateLimited indicates the API returned 429 after retries were exhausted.
var ErrRateLimited = errors.New("strava: rate limited")

// ErrUnavailable indicates the API was unreachable or returned a server
// error after retries were exhausted.
var ErrUnavailable = errors.New("strava: upstream unavailable")

// Activity is a single activity record as returned by the Strava API.
// Numeric fields may be absent from the upstream payload; the zero value
// means "not reported" and is treated as zero in all aggregations.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	Distance           float64   `json:"distance"`
	MovingTime         int       `json:"moving_time"`
	ElapsedTime        int       `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	AverageSpeed       float64   `json:"average_speed"`
	MaxSpeed           float64   `json:"max_speed"`
}

// LocalDate returns the athlete-local civil date of the activity start,
// normalized to midnight UTC so dates compare with time.Equal. All
// date-based grouping and filtering operates on this value, never on the
// UTC instant.
func (a Activity) LocalDate() time.Time {
	y, m, d := a.StartDateLocal.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RateLimitInfo holds the most recent rate limit headers from the API.
type RateLimitInfo struct {
	Limit15Min int
	Usage15Min int
	LimitDaily int
	UsageDaily int
}

// Client is a Strava API client with automatic retry and backoff.
// It holds no credentials; the access token is supplied per call so one
// client can serve multiple athletes.
type Client struct {
	httpClient *retryablehttp.Client
	baseURL    string
	now        func() time.Time
	rateMu     sync.RWMutex
	rateLimit  RateLimitInfo
}

// RetryConfig holds retry/backoff settings
type RetryConfig struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: defaultMaxRetries,
		MinWait:    defaultInitialBackoff,
		MaxWait:    defaultMaxBackoff,
	}
}

// NewClient creates a new Strava API client with default retry settings
func NewClient() *Client {
	return newClient(defaultBaseURL, DefaultRetryConfig())
}

// NewClientWithConfig creates a client with a custom base URL and retry
// settings (the base URL override is used by tests)
func NewClientWithConfig(baseURL string, cfg RetryConfig) *Client {
	return newClient(baseURL, cfg)
}

func newClient(baseURL string, cfg RetryConfig) *Client {
	log := logging.Logger
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = cfg.MinWait
	client.RetryWaitMax = cfg.MaxWait
	client.Logger = &logging.LeveledLogger{}

	// Hand the final response back after retries are exhausted so the
	// status switch in fetchPage can classify it.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	// Retry on 429 and 5xx; auth failures are final.
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode == http.StatusForbidden,
			resp.StatusCode == http.StatusNotFound:
			return false, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return true, nil
		case resp.StatusCode >= 500:
			return true, nil
		}
		return false, nil
	}

	// On 429 wait for the Retry-After header, or the next 15-minute window
	// reset (Strava limits reset at :00/:15/:30/:45). Everything else gets
	// exponential backoff.
	client.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					wait := time.Duration(seconds) * time.Second
					log.Info().Dur("wait", wait).Int("attempt", attemptNum).Msg("rate limited, honoring Retry-After")
					return wait
				}
			}
			wait := timeUntilNext15MinWindow(time.Now())
			log.Info().Dur("wait", wait).Int("attempt", attemptNum).Msg("rate limited, waiting for window reset")
			return wait
		}

		wait := min * time.Duration(1<<uint(attemptNum))
		if wait > max {
			wait = max
		}
		return wait
	}

	client.RequestLogHook = func(logger retryablehttp.Logger, req *http.Request, retry int) {
		if retry > 0 {
			log.Info().Str("url", req.URL.Path).Int("attempt", retry+1).Msg("retrying request")
		}
		if logging.IsTraceEnabled() {
			log.Debug().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Str("headers", formatHeaders(req.Header)).
				Msg("request headers")
		}
	}

	return &Client{
		httpClient: client,
		baseURL:    baseURL,
		now:        time.Now,
	}
}

// RateLimit returns the most recently observed rate limit info.
func (c *Client) RateLimit() RateLimitInfo {
	c.rateMu.RLock()
	defer c.rateMu.RUnlock()
	return c.rateLimit
}

func (c *Client) updateRateLimit(resp *http.Response) RateLimitInfo {
	info := parseRateLimitHeaders(resp.Header)
	c.rateMu.Lock()
	c.rateLimit = info
	c.rateMu.Unlock()
	return info
}

// FetchWindow returns every activity whose athlete-local start date falls in
// the inclusive window [after, before]. A nil bound is unbounded on that
// side (back to epoch / up to now).
//
// The upstream feed is reverse-chronological and capped at 200 records per
// response, so the window is reconstructed by paginating backward: each
// request narrows `before` to one day earlier than the oldest activity seen
// so far. Requests are padded by one day on each side because the API
// filters on UTC instants while the caller's window is in athlete-local
// dates; the over-fetched boundary records are removed by the final filter.
func (c *Client) FetchWindow(ctx context.Context, accessToken string, after, before *time.Time) ([]Activity, error) {
	log := logging.Logger

	var all []Activity
	seen := make(map[int64]struct{})
	currentBefore := before

	for page := 1; page <= maxPages; page++ {
		activities, err := c.fetchPage(ctx, accessToken, after, currentBefore)
		if err != nil {
			return nil, err
		}

		observability.RecordUpstreamPage(len(activities))

		rl := c.RateLimit()
		log.Debug().
			Int("page", page).
			Int("activities_on_page", len(activities)).
			Int("total_fetched", len(all)+len(activities)).
			Str("15min_usage", fmt.Sprintf("%d/%d", rl.Usage15Min, rl.Limit15Min)).
			Str("daily_usage", fmt.Sprintf("%d/%d", rl.UsageDaily, rl.LimitDaily)).
			Msg("fetched activity page")

		if len(activities) == 0 {
			break
		}

		// The request padding re-fetches the day the previous page ended
		// on, so consecutive pages overlap at day boundaries.
		for _, a := range activities {
			if _, dup := seen[a.ID]; dup {
				continue
			}
			seen[a.ID] = struct{}{}
			all = append(all, a)
		}

		// A short page means the feed is exhausted.
		if len(activities) < perPage {
			break
		}

		// The feed is newest-first, so the last record is the oldest.
		oldest := activities[len(activities)-1].LocalDate()

		if after != nil && !oldest.After(*after) {
			break
		}

		next := oldest.AddDate(0, 0, -1)
		currentBefore = &next
	}

	return filterByLocalDate(all, after, before), nil
}

// filterByLocalDate keeps activities whose local start date lies within the
// inclusive [after, before] window. Always applied after the fetch loop
// because the request padding intentionally over-fetches.
func filterByLocalDate(activities []Activity, after, before *time.Time) []Activity {
	filtered := make([]Activity, 0, len(activities))
	for _, a := range activities {
		d := a.LocalDate()
		if after != nil && d.Before(*after) {
			continue
		}
		if before != nil && d.After(*before) {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered
}

// fetchPage requests one page of activities. The window bounds are widened
// by one day on each side before being converted to UTC epoch parameters,
// so that no activity is lost to the skew between the athlete's local
// calendar and the UTC calendar the API filters on.
func (c *Client) fetchPage(ctx context.Context, accessToken string, after, before *time.Time) ([]Activity, error) {
	var afterEpoch int64
	if after != nil {
		y, m, d := after.Date()
		afterEpoch = time.Date(y, m, d-1, 0, 0, 0, 0, time.UTC).Unix()
	}

	var beforeEpoch int64
	if before != nil {
		// End of the padded day, i.e. midnight two days past `before`.
		y, m, d := before.Date()
		beforeEpoch = time.Date(y, m, d+2, 0, 0, 0, 0, time.UTC).Unix()
	} else {
		beforeEpoch = c.now().Unix()
	}

	url := fmt.Sprintf("%s/athlete/activities?after=%d&before=%d&per_page=%d",
		c.baseURL, afterEpoch, beforeEpoch, perPage)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.updateRateLimit(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		// Retries exhausted
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var activities []Activity
	if err := json.NewDecoder(resp.Body).Decode(&activities); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return activities, nil
}

// timeUntilNext15MinWindow calculates time until the next 15-minute boundary
// Strava rate limits reset at 0, 15, 30, 45 minutes past each hour
func timeUntilNext15MinWindow(now time.Time) time.Duration {
	minute := now.Minute()
	second := now.Second()
	nano := now.Nanosecond()

	nextBoundary := ((minute / 15) + 1) * 15
	var minutesUntil int
	if nextBoundary >= 60 {
		minutesUntil = 60 - minute
	} else {
		minutesUntil = nextBoundary - minute
	}

	waitDuration := time.Duration(minutesUntil)*time.Minute -
		time.Duration(second)*time.Second -
		time.Duration(nano)*time.Nanosecond

	// Small buffer to ensure we're past the boundary
	return waitDuration + 2*time.Second
}

func parseRateLimitHeaders(headers http.Header) RateLimitInfo {
	var info RateLimitInfo

	// Format: "15min_limit,daily_limit" and "15min_usage,daily_usage"
	if limitHeader := headers.Get("X-RateLimit-Limit"); limitHeader != "" {
		parts := strings.Split(limitHeader, ",")
		if len(parts) >= 1 {
			info.Limit15Min, _ = strconv.Atoi(parts[0])
		}
		if len(parts) >= 2 {
			info.LimitDaily, _ = strconv.Atoi(parts[1])
		}
	}
	if usageHeader := headers.Get("X-RateLimit-Usage"); usageHeader != "" {
		parts := strings.Split(usageHeader, ",")
		if len(parts) >= 1 {
			info.Usage15Min, _ = strconv.Atoi(parts[0])
		}
		if len(parts) >= 2 {
			info.UsageDaily, _ = strconv.Atoi(parts[1])
		}
	}

	return info
}

// formatHeaders formats HTTP headers for logging, redacting sensitive values
func formatHeaders(headers http.Header) string {
	if len(headers) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		value := strings.Join(headers[k], ", ")
		if lower := strings.ToLower(k); lower == "authorization" || lower == "cookie" || lower == "set-cookie" {
			value = "[REDACTED]"
		}
		sb.WriteString(fmt.Sprintf("%s: %q", k, value))
	}
	sb.WriteString("}")
	return sb.String()
}
