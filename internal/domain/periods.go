package domain

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	PeriodToday     = "today"
	PeriodYesterday = "yesterday"
	PeriodLastWeek  = "lastWeek"
	PeriodLastMonth = "lastMonth"
	PeriodLastYear  = "lastYear"
	PeriodCustom    = "custom"
	PeriodAll       = "all"
)

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// ResolvePeriod turns a report period selector into a concrete range in loc.
// "yesterday" is the previous calendar day; lastWeek, lastMonth and lastYear
// are rolling windows ending at now. A blank period with explicit dates is
// treated as custom, and a blank period without dates as all.
func ResolvePeriod(period, startDate, endDate string, now time.Time, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	period = strings.TrimSpace(period)
	if period == "" {
		if strings.TrimSpace(startDate) != "" || strings.TrimSpace(endDate) != "" {
			period = PeriodCustom
		} else {
			period = PeriodAll
		}
	}

	switch period {
	case PeriodToday:
		return DateRange{Period: period, From: StartOfDay(now), To: now}, nil
	case PeriodYesterday:
		day := StartOfDay(now).AddDate(0, 0, -1)
		return DateRange{Period: period, From: day, To: EndOfDay(day)}, nil
	case PeriodLastWeek:
		return DateRange{Period: period, From: now.AddDate(0, 0, -7), To: now}, nil
	case PeriodLastMonth:
		return DateRange{Period: period, From: now.AddDate(0, -1, 0), To: now}, nil
	case PeriodLastYear:
		return DateRange{Period: period, From: now.AddDate(-1, 0, 0), To: now}, nil
	case PeriodAll:
		return DateRange{Period: period}, nil
	case PeriodCustom:
		from, err := parseBoundary("startDate", startDate, loc, false)
		if err != nil {
			return DateRange{}, err
		}
		to, err := parseBoundary("endDate", endDate, loc, true)
		if err != nil {
			return DateRange{}, err
		}
		if to.Before(from) {
			return DateRange{}, Invalid("endDate", "endDate must not be before startDate")
		}
		return DateRange{Period: period, From: from, To: to}, nil
	default:
		return DateRange{}, Invalid("period", "period must be one of: today, yesterday, lastWeek, lastMonth, lastYear, custom, all")
	}
}

// parseBoundary accepts any common date format. A bare date used as the end
// of a range covers that whole day.
func parseBoundary(field, raw string, loc *time.Location, end bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, Invalid(field, field+" is required for a custom period")
	}
	t, err := ParseDate(raw, loc)
	if err != nil {
		return time.Time{}, Invalid(field, field+" is not a valid date")
	}
	if end && t.Equal(StartOfDay(t)) {
		return EndOfDay(t), nil
	}
	return t, nil
}

// ParseDate parses a user supplied date or timestamp in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return dateparse.ParseIn(strings.TrimSpace(raw), loc)
}

// DayKey formats t as the calendar day used in per-day breakdowns.
func DayKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006-01-02")
}
