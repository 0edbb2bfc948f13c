package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MariDenig/chatBot-hist/internal/log"
)

// worldTimeURL serves the current time per timezone.
const worldTimeURL = "http://worldtimeapi.org/api/timezone/"

// clockTimeout bounds the lookup; past it the local clock answers.
const clockTimeout = 10 * time.Second

// Clock answers time intents. It prefers the world-time API so replies
// stay correct even when the host clock drifts, and falls back to the
// local clock on any failure.
type Clock struct {
	timezone string
	baseURL  string
	client   *http.Client
	logger   log.Logger
}

// NewClock creates a Clock for the given IANA timezone.
func NewClock(timezone string, logger log.Logger) *Clock {
	return &Clock{
		timezone: timezone,
		baseURL:  worldTimeURL,
		client:   &http.Client{Timeout: clockTimeout},
		logger:   logger,
	}
}

// Report returns the user-facing current-time reply.
func (c *Clock) Report(ctx context.Context) string {
	return fmt.Sprintf("A hora atual é: %s", c.now(ctx).Format("02/01/2006, 15:04:05"))
}

// now fetches the current time in the configured timezone, degrading to
// the local clock.
func (c *Clock) now(ctx context.Context) time.Time {
	loc, err := time.LoadLocation(c.timezone)
	if err != nil {
		loc = time.Local
	}

	ctx, cancel := context.WithTimeout(ctx, clockTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.timezone, nil)
	if err != nil {
		return time.Now().In(loc)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("world time lookup failed, using local clock", "error", err)
		return time.Now().In(loc)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return time.Now().In(loc)
	}

	var payload struct {
		Datetime string `json:"datetime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return time.Now().In(loc)
	}

	t, err := time.Parse(time.RFC3339Nano, payload.Datetime)
	if err != nil {
		return time.Now().In(loc)
	}
	return t.In(loc)
}
