package bbbpool

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apognu/gocal"
	"github.com/dariubs/percent"
	"gopkg.in/ini.v1"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

var icalUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";")

// SchedulePredictor reads the wanted participant capacity from the most
// recent calendar event.
type SchedulePredictor struct {
	source structs.CalendarSource
	pool   *structs.Pool
	window int
	logger *logging.Logger
	now    func() time.Time
}

// NewSchedulePredictor returns a predictor reading events from source.
func NewSchedulePredictor(source structs.CalendarSource, config *structs.Config,
	logger *logging.Logger) *SchedulePredictor {
	return &SchedulePredictor{
		source: source,
		pool:   config.Pool,
		window: config.Schedule.WindowDays,
		logger: logger,
		now:    time.Now,
	}
}

// Predict returns the number of active servers the schedule asks for, -1
// when no usable event exists. An unreadable calendar is an error.
func (p *SchedulePredictor) Predict(ctx context.Context) (int, error) {
	if p.source == nil {
		return 0, fmt.Errorf("%w: no calendar configured", structs.ErrCalendarUnavailable)
	}

	p.logger.Info("core/schedule: fetching the capacity adaptation calendar")

	raw, err := p.source.Load(ctx)
	if err != nil {
		return 0, err
	}
	return PredictFromCalendar(raw, p.now(), p.window, p.pool, p.logger)
}

// PredictFromCalendar applies the most recent event started in the window
// of days before now. Events carry a users key, either an absolute number of
// participants or a percentage of the pool capacity.
func PredictFromCalendar(raw []byte, now time.Time, windowDays int, pool *structs.Pool,
	logger *logging.Logger) (int, error) {

	start := now.AddDate(0, 0, -windowDays)
	end := now

	cal := gocal.NewParser(bytes.NewReader(raw))
	cal.Start, cal.End = &start, &end
	// Invalid events are skipped instead of failing the whole feed.
	cal.Strict = gocal.StrictParams{Mode: gocal.StrictModeFailEvent}
	if err := cal.Parse(); err != nil {
		return 0, fmt.Errorf("core/schedule: unable to parse the calendar: %v", err)
	}

	var latest *gocal.Event
	for i := range cal.Events {
		e := &cal.Events[i]
		if e.Start == nil || e.Start.After(now) {
			continue
		}
		if latest == nil || e.Start.After(*latest.Start) {
			latest = e
		}
	}

	if latest == nil {
		logger.Error("core/schedule: found no event at all in the last %d days", windowDays)
		return -1, nil
	}

	logger.Info("core/schedule: found matching adaptation event %v started %v ago",
		latest.Summary, now.Sub(*latest.Start).Round(time.Minute))

	users, ok := eventUsers(latest)
	if !ok {
		logger.Error("core/schedule: event is missing the users absolute value or ratio")
		return -1, nil
	}

	logger.Info("core/schedule: participant load required by schedule: %v", users)

	wanted, err := parseUsers(users, pool.Capacity)
	if err != nil {
		logger.Error("core/schedule: %v", err)
		return 0, err
	}

	serverCapacity := float64(pool.Capacity) / float64(pool.Size)
	count := int(math.Ceil(wanted / serverCapacity))

	logger.Info("core/schedule: next active servers count from schedule: %d", count)
	return count, nil
}

// eventUsers looks for the users key in the description of the event, then
// in its summary.
func eventUsers(e *gocal.Event) (string, bool) {
	for _, text := range []string{e.Description, e.Summary} {
		if users, ok := iniValue(icalUnescaper.Replace(text), "users"); ok {
			return users, true
		}
	}
	return "", false
}

func iniValue(text, key string) (string, bool) {
	cfg, err := ini.LoadSources(ini.LoadOptions{SkipUnrecognizableLines: true}, []byte(text))
	if err != nil {
		return "", false
	}
	sec := cfg.Section("")
	if !sec.HasKey(key) {
		return "", false
	}
	return strings.TrimSpace(sec.Key(key).String()), true
}

// parseUsers converts the users value of an event into a number of
// participants. Ratios accept a decimal comma.
func parseUsers(users string, poolCapacity int) (float64, error) {
	if strings.Contains(users, "%") {
		clean := strings.NewReplacer(" ", "", "%", "", ",", ".").Replace(users)
		ratio, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid users ratio %q: %v", users, err)
		}
		if ratio < 0 || ratio > 100 {
			return 0, fmt.Errorf("users ratio %v%% is beyond limits, it must be between 0 and 100", ratio)
		}
		return math.Ceil(percent.PercentFloat(ratio, float64(poolCapacity))), nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(users), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid users value %q: %v", users, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("users value %v can not be negative", v)
	}
	return v, nil
}
