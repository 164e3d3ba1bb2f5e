// Package ics renders a plan's schedules as a minimal RFC 5545 calendar.
package ics

import (
	"fmt"
	"strings"
	"time"

	"tripline/internal/domain"
)

const (
	prodID     = "-//tripline//tripline//EN"
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Render produces a VCALENDAR with one VEVENT per schedule. Schedules with
// a time become one-hour events; all-day otherwise.
func Render(plan domain.Plan, schedules []domain.Schedule) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}
	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:" + prodID)
	line("X-WR-CALNAME:" + escape(plan.Title))
	for _, s := range schedules {
		date, err := time.Parse(dateLayout, s.Date)
		if err != nil {
			continue
		}
		line("BEGIN:VEVENT")
		line(fmt.Sprintf("UID:plan-%d-schedule-%d@tripline", plan.ID, s.ID))
		line("DTSTAMP:" + time.Now().UTC().Format("20060102T150405Z"))
		if t, err := time.Parse(timeLayout, s.Time); err == nil {
			start := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
			line("DTSTART:" + start.Format("20060102T150405Z"))
			line("DTEND:" + start.Add(time.Hour).Format("20060102T150405Z"))
		} else {
			line("DTSTART;VALUE=DATE:" + date.Format("20060102"))
			line("DTEND;VALUE=DATE:" + date.AddDate(0, 0, 1).Format("20060102"))
		}
		line("SUMMARY:" + escape(s.Title))
		if s.Place != "" {
			line("LOCATION:" + escape(s.Place))
		}
		if s.Memo != "" {
			line("DESCRIPTION:" + escape(s.Memo))
		}
		line("END:VEVENT")
	}
	line("END:VCALENDAR")
	return b.String()
}

// escape applies RFC 5545 text escaping.
func escape(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
		"\r", "",
	)
	return r.Replace(s)
}
