// Package schedule decides when the engine may trade, open new positions and
// must flatten, based on wall clock times in the exchange time zone.
package schedule

import (
	"time"
	// embedded zoneinfo for hosts without one
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
)

const clockLayout = "15:04"

// Config holds the session times as HH:MM in TZ. Empty times disable the
// corresponding boundary.
type Config struct {
	TZ             string `json:"tz" yaml:"tz" jsonschema:"title=Time Zone,description=IANA time zone of the session times,default=UTC" validate:"omitempty,timezone"`
	StartTrade     string `json:"start_trade" yaml:"start_trade" jsonschema:"title=Start Trade,description=HH:MM when trading starts" validate:"omitempty,datetime=15:04"`
	StopNewEntries string `json:"stop_new_entries" yaml:"stop_new_entries" jsonschema:"title=Stop New Entries,description=HH:MM after which BUY decisions are ignored" validate:"omitempty,datetime=15:04"`
	FlattenTime    string `json:"flatten_time" yaml:"flatten_time" jsonschema:"title=Flatten Time,description=HH:MM when every order is cancelled and every position closed" validate:"omitempty,datetime=15:04"`
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid schedule config", err)
	}

	return nil
}

// Schedule answers session questions for a point in time. A nil Schedule is
// always open and never flattens.
type Schedule struct {
	loc         *time.Location
	start       *clock
	stopEntries *clock
	flatten     *clock
}

type clock struct {
	hour   int
	minute int
}

// on returns the clock time on the calendar date of local.
func (c clock) on(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), c.hour, c.minute, 0, 0, local.Location())
}

// New parses cfg.
func New(cfg Config) (*Schedule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc := time.UTC

	if cfg.TZ != "" {
		l, err := time.LoadLocation(cfg.TZ)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "unknown time zone %q", cfg.TZ)
		}

		loc = l
	}

	s := &Schedule{loc: loc, start: nil, stopEntries: nil, flatten: nil}

	var err error
	if s.start, err = parseClock(cfg.StartTrade); err != nil {
		return nil, err
	}

	if s.stopEntries, err = parseClock(cfg.StopNewEntries); err != nil {
		return nil, err
	}

	if s.flatten, err = parseClock(cfg.FlattenTime); err != nil {
		return nil, err
	}

	return s, nil
}

func parseClock(value string) (*clock, error) {
	if value == "" {
		return nil, nil
	}

	t, err := time.Parse(clockLayout, value)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid HH:MM time %q", value)
	}

	return &clock{hour: t.Hour(), minute: t.Minute()}, nil
}

// Location returns the session time zone.
func (s *Schedule) Location() *time.Location {
	if s == nil {
		return time.UTC
	}

	return s.loc
}

// IsTradingTime reports whether t lies within [start_trade, flatten_time].
func (s *Schedule) IsTradingTime(t time.Time) bool {
	if s == nil {
		return true
	}

	local := t.In(s.loc)

	if s.start != nil && local.Before(s.start.on(local)) {
		return false
	}

	if s.flatten != nil && local.After(s.flatten.on(local)) {
		return false
	}

	return true
}

// EntriesAllowed reports whether t is not past stop_new_entries.
func (s *Schedule) EntriesAllowed(t time.Time) bool {
	if s == nil || s.stopEntries == nil {
		return true
	}

	local := t.In(s.loc)

	return !local.After(s.stopEntries.on(local))
}

// FlattenDue reports whether t is at or past flatten_time.
func (s *Schedule) FlattenDue(t time.Time) bool {
	if s == nil || s.flatten == nil {
		return false
	}

	local := t.In(s.loc)

	return !local.Before(s.flatten.on(local))
}
