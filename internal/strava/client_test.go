package strava

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"testing"
	"time"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, MinWait: 10 * time.Millisecond, MaxWait: 50 * time.Millisecond}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeUpstream serves a fixed activity set the way the real API does:
// reverse-chronological, filtered by after/before epoch seconds, capped at
// per_page records per response.
func fakeUpstream(t *testing.T, dataset []Activity) *httptest.Server {
	t.Helper()

	sorted := make([]Activity, len(dataset))
	copy(sorted, dataset)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartDate.After(sorted[j].StartDate) })

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("expected Bearer test-token, got %q", auth)
		}

		q := r.URL.Query()
		after, _ := strconv.ParseInt(q.Get("after"), 10, 64)
		before, _ := strconv.ParseInt(q.Get("before"), 10, 64)
		pageSize, _ := strconv.Atoi(q.Get("per_page"))

		page := make([]Activity, 0, pageSize)
		for _, a := range sorted {
			ts := a.StartDate.Unix()
			if ts <= after || ts >= before {
				continue
			}
			page = append(page, a)
			if len(page) == pageSize {
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-RateLimit-Limit", "200,2000")
		w.Header().Set("X-RateLimit-Usage", "10,100")
		json.NewEncoder(w).Encode(page)
	}))
}

// dailyActivities builds one activity per day ending on end, newest id
// first, started at 08:00 with identical local and UTC clocks.
func dailyActivities(count int, end time.Time) []Activity {
	out := make([]Activity, 0, count)
	for i := 0; i < count; i++ {
		start := end.AddDate(0, 0, -i).Add(8 * time.Hour)
		out = append(out, Activity{
			ID:             int64(count - i),
			Name:           "Morning Run",
			Type:           "Run",
			SportType:      "Run",
			Distance:       5000,
			MovingTime:     1800,
			StartDate:      start,
			StartDateLocal: start,
		})
	}
	return out
}

func TestFetchWindowSinglePage(t *testing.T) {
	dataset := dailyActivities(5, day(2024, time.June, 5))
	server := fakeUpstream(t, dataset)
	defer server.Close()

	client := NewClientWithConfig(server.URL, testRetryConfig())

	after := day(2024, time.June, 2)
	before := day(2024, time.June, 4)
	activities, err := client.FetchWindow(context.Background(), "test-token", &after, &before)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(activities) != 3 {
		t.Fatalf("expected 3 activities, got %d", len(activities))
	}
	for _, a := range activities {
		d := a.LocalDate()
		if d.Before(after) || d.After(before) {
			t.Errorf("activity %d local date %s outside window", a.ID, d.Format("2006-01-02"))
		}
	}
}

func TestFetchWindowPaginatesBackward(t *testing.T) {
	// 450 daily activities force three pages of backward pagination.
	dataset := dailyActivities(450, day(2024, time.December, 31))
	server := fakeUpstream(t, dataset)
	defer server.Close()

	client := NewClientWithConfig(server.URL, testRetryConfig())

	after := day(2023, time.October, 9) // the oldest activity's day
	before := day(2024, time.December, 31)
	activities, err := client.FetchWindow(context.Background(), "test-token", &after, &before)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(activities) != 450 {
		t.Fatalf("expected all 450 activities, got %d", len(activities))
	}

	ids := make(map[int64]bool, len(activities))
	for _, a := range activities {
		if ids[a.ID] {
			t.Errorf("activity %d returned twice", a.ID)
		}
		ids[a.ID] = true
	}
}

func TestFetchWindowFiltersBoundaryOverfetch(t *testing.T) {
	// Local midnight in UTC+10: the UTC instant falls on the previous UTC
	// day, so a UTC-epoch window without padding would miss it.
	loc := time.FixedZone("UTC+10", 10*60*60)
	localStart := time.Date(2024, time.June, 1, 0, 30, 0, 0, loc)
	boundary := Activity{
		ID:             1,
		Type:           "Run",
		StartDate:      localStart.UTC(),
		StartDateLocal: time.Date(2024, time.June, 1, 0, 30, 0, 0, time.UTC),
	}
	// Inside the padded epoch window but outside the local-date window, so
	// only the final filter removes it.
	outside := Activity{
		ID:             2,
		Type:           "Run",
		StartDate:      day(2024, time.May, 31).Add(8 * time.Hour),
		StartDateLocal: day(2024, time.May, 31).Add(8 * time.Hour),
	}

	server := fakeUpstream(t, []Activity{boundary, outside})
	defer server.Close()

	client := NewClientWithConfig(server.URL, testRetryConfig())

	after := day(2024, time.June, 1)
	before := day(2024, time.June, 1)
	activities, err := client.FetchWindow(context.Background(), "test-token", &after, &before)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(activities) != 1 {
		t.Fatalf("expected exactly the boundary activity, got %d activities", len(activities))
	}
	if activities[0].ID != 1 {
		t.Errorf("expected activity 1, got %d", activities[0].ID)
	}
}

func TestFetchWindowStopsAtIterationCap(t *testing.T) {
	// Every response is a full page of the same day, so no stop condition
	// other than the cap can fire.
	requests := 0
	sameDay := day(2020, time.January, 1).Add(8 * time.Hour)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		page := make([]Activity, perPage)
		for i := range page {
			page[i] = Activity{
				ID:             int64(requests*perPage + i),
				Type:           "Run",
				StartDate:      sameDay,
				StartDateLocal: sameDay,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	client := NewClientWithConfig(server.URL, testRetryConfig())

	_, err := client.FetchWindow(context.Background(), "test-token", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != maxPages {
		t.Errorf("expected %d requests, got %d", maxPages, requests)
	}
}

func TestFetchWindowUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClientWithConfig(server.URL, testRetryConfig())

	_, err := client.FetchWindow(context.Background(), "bad-token", nil, nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestFetchWindowRateLimitedAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClientWithConfig(server.URL, testRetryConfig())

	_, err := client.FetchWindow(context.Background(), "test-token", nil, nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestFetchWindowServerErrorPropagates(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClientWithConfig(server.URL, testRetryConfig())

	_, err := client.FetchWindow(context.Background(), "test-token", nil, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	// Initial request plus MaxRetries retries
	if requests != 3 {
		t.Errorf("expected 3 attempts, got %d", requests)
	}
}

func TestFetchWindowRecordsRateLimitHeaders(t *testing.T) {
	server := fakeUpstream(t, dailyActivities(2, day(2024, time.March, 1)))
	defer server.Close()

	client := NewClientWithConfig(server.URL, testRetryConfig())

	if _, err := client.FetchWindow(context.Background(), "test-token", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rl := client.RateLimit()
	if rl.Limit15Min != 200 || rl.LimitDaily != 2000 {
		t.Errorf("unexpected limits: %+v", rl)
	}
	if rl.Usage15Min != 10 || rl.UsageDaily != 100 {
		t.Errorf("unexpected usage: %+v", rl)
	}
}

func TestLocalDateUsesLocalClock(t *testing.T) {
	a := Activity{
		StartDate:      time.Date(2024, time.June, 2, 3, 0, 0, 0, time.UTC),
		StartDateLocal: time.Date(2024, time.June, 1, 22, 0, 0, 0, time.UTC),
	}
	want := day(2024, time.June, 1)
	if got := a.LocalDate(); !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestTimeUntilNext15MinWindow(t *testing.T) {
	now := time.Date(2024, time.June, 1, 10, 7, 30, 0, time.UTC)
	wait := timeUntilNext15MinWindow(now)
	// 7:30 until 10:15 plus the 2s buffer
	want := 7*time.Minute + 30*time.Second + 2*time.Second
	if wait != want {
		t.Errorf("expected %s, got %s", want, wait)
	}
}

func TestParseRateLimitHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "100,1000")
	h.Set("X-RateLimit-Usage", "42,420")

	info := parseRateLimitHeaders(h)
	if info.Limit15Min != 100 || info.LimitDaily != 1000 || info.Usage15Min != 42 || info.UsageDaily != 420 {
		t.Errorf("unexpected rate limit info: %+v", info)
	}
}
