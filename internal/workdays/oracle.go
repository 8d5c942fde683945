package workdays

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"guest-visits-backend/config"
)

// DayType is the classification of a calendar date.
type DayType int

const (
	Working DayType = iota
	NonWorking
)

func (d DayType) String() string {
	if d == Working {
		return "working"
	}
	return "non-working"
}

// Oracle classifies a single date. Implementations may fail; the resolver
// recovers from every error.
type Oracle interface {
	DayType(ctx context.Context, date time.Time) (DayType, error)
}

// HTTPOracle queries an isdayoff-style endpoint:
// GET <url>?year=Y&month=M&day=D answering "0" for working days and "1" otherwise.
type HTTPOracle struct {
	url    string
	client *http.Client
}

// NewHTTPOracle creates an oracle client with the configured timeout and optional proxy.
func NewHTTPOracle(cfg *config.CalendarConfig) *HTTPOracle {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			slog.Warn("invalid calendar proxy URL, calling the oracle directly", "proxy", cfg.HTTPProxy, "error", err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &HTTPOracle{
		url: cfg.OracleURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.OracleTimeout,
		},
	}
}

// DayType implements Oracle.
func (o *HTTPOracle) DayType(ctx context.Context, date time.Time) (DayType, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(date.Year()))
	q.Set("month", strconv.Itoa(int(date.Month())))
	q.Set("day", strconv.Itoa(date.Day()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	switch answer := strings.TrimSpace(string(body)); answer {
	case "0":
		return Working, nil
	case "1":
		return NonWorking, nil
	default:
		return 0, fmt.Errorf("unexpected oracle answer %q", answer)
	}
}
