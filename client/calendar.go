package client

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// calendarTries is the number of download attempts before the cached copy
// is used.
const calendarTries = 3

// Calendar fetches the iCal feed describing scheduled sessions and keeps a
// local copy to fall back on when the feed is unavailable.
type Calendar struct {
	url       string
	cacheFile string
	http      *http.Client
	logger    *logging.Logger

	// sleep is replaced in tests.
	sleep func(time.Duration)
}

// NewCalendar returns a calendar source for url cached in cacheFile.
func NewCalendar(url, cacheFile string, logger *logging.Logger) *Calendar {
	return &Calendar{
		url:       url,
		cacheFile: cacheFile,
		http:      &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// Load returns the feed content, downloaded when possible and read from the
// cache file otherwise.
func (c *Calendar) Load(ctx context.Context) ([]byte, error) {
	var lastErr error

	for try := 1; try <= calendarTries; try++ {
		body, err := c.fetch(ctx)
		if err == nil {
			if err := os.WriteFile(c.cacheFile, body, 0640); err != nil {
				c.logger.Warning("client/calendar: unable to cache the calendar in %v: %v", c.cacheFile, err)
			}
			return body, nil
		}
		lastErr = err

		c.logger.Debug("client/calendar: try %v/%v failed: %v", try, calendarTries, err)
		if try < calendarTries {
			c.sleep(time.Duration(800+rand.Intn(700)) * time.Millisecond)
		}
	}

	c.logger.Warning("client/calendar: unable to download the calendar, "+
		"falling back to the cached copy %v: %v", c.cacheFile, lastErr)

	body, err := os.ReadFile(c.cacheFile)
	if err != nil {
		return nil, fmt.Errorf("client/calendar: %w: no usable cache: %v", structs.ErrCalendarUnavailable, err)
	}
	return body, nil
}

func (c *Calendar) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %v", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
