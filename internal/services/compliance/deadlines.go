package compliance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"agentic-reconciliation-backend/internal/models"
)

// DefaultDeadlineDays is the look-ahead window when none is given.
const DefaultDeadlineDays = 7

// Deadline is one compliance calendar event.
type Deadline struct {
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// DeadlineTracker reads an iCalendar (.ics) file, or a CSV calendar with
// Event, Start Date and End Date columns. The file is read on every call so
// edits show up immediately.
type DeadlineTracker struct {
	path   string
	now    func() time.Time
	logger *slog.Logger
}

// NewDeadlineTracker creates a tracker. now may be nil.
func NewDeadlineTracker(path string, now func() time.Time) *DeadlineTracker {
	if now == nil {
		now = time.Now
	}
	return &DeadlineTracker{
		path:   path,
		now:    now,
		logger: slog.Default().With("component", "deadline-tracker"),
	}
}

// Upcoming returns events starting within [now, now+days], earliest first.
// A missing calendar yields no events.
func (d *DeadlineTracker) Upcoming(days int) ([]Deadline, error) {
	if days <= 0 {
		days = DefaultDeadlineDays
	}
	events, err := d.load()
	if err != nil {
		return nil, err
	}

	now := d.now()
	until := now.AddDate(0, 0, days)
	upcoming := []Deadline{}
	for _, ev := range events {
		if !ev.Start.Before(now) && !ev.Start.After(until) {
			upcoming = append(upcoming, ev)
		}
	}
	slices.SortStableFunc(upcoming, func(a, b Deadline) int {
		return a.Start.Compare(b.Start)
	})
	return upcoming, nil
}

func (d *DeadlineTracker) load() ([]Deadline, error) {
	if d.path == "" {
		return nil, nil
	}
	ext := strings.ToLower(filepath.Ext(d.path))
	if ext != ".csv" && ext != ".ics" {
		d.logger.Warn("unsupported calendar format", "path", d.path)
		return nil, nil
	}

	f, err := os.Open(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening calendar: %w", err)
	}
	defer f.Close()

	if ext == ".ics" {
		return loadICS(f)
	}
	return d.loadCSV(f)
}

// loadICS reads every VEVENT. An event without DTEND ends when it starts.
func loadICS(r io.Reader) ([]Deadline, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	var events []Deadline
	for i, ev := range cal.Events() {
		var summary string
		if prop := ev.GetProperty(ics.ComponentPropertySummary); prop != nil {
			summary = prop.Value
		}
		start, err := ev.GetStartAt()
		if err != nil {
			return nil, fmt.Errorf("calendar event %d start: %w", i+1, err)
		}
		end := start
		if ev.GetProperty(ics.ComponentPropertyDtEnd) != nil {
			if end, err = ev.GetEndAt(); err != nil {
				return nil, fmt.Errorf("calendar event %d end: %w", i+1, err)
			}
		}
		events = append(events, Deadline{Summary: summary, Start: start, End: end})
	}
	return events, nil
}

func (d *DeadlineTracker) loadCSV(r io.Reader) ([]Deadline, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading calendar header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"Event", "Start Date", "End Date"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("calendar is missing the %q column", required)
		}
	}

	loc := d.now().Location()
	var events []Deadline
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("calendar row %d: %w", row, err)
		}
		get := func(name string) string {
			if i := col[name]; i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		start, err := time.ParseInLocation(models.DateLayout, get("Start Date"), loc)
		if err != nil {
			return nil, fmt.Errorf("calendar row %d start date: %w", row, err)
		}
		end, err := time.ParseInLocation(models.DateLayout, get("End Date"), loc)
		if err != nil {
			return nil, fmt.Errorf("calendar row %d end date: %w", row, err)
		}
		events = append(events, Deadline{Summary: get("Event"), Start: start, End: end})
	}
	return events, nil
}
