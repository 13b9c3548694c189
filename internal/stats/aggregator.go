// Package stats derives read-only views from a snapshot of an owner's applications.
package stats

import (
	"time"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/history"
)

const (
	// DefaultWeeks is the weekly lookback used by the statistics view.
	DefaultWeeks = 4
	// DefaultMonths is the monthly lookback used by the statistics view.
	DefaultMonths = 6

	weekLabelLayout  = "02 Jan"
	monthLabelLayout = "Jan 2006"
	daysPerWeek      = 7
)

// StatusCount is the number of applications currently holding Status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// Report bundles every derived view served by the statistics endpoint.
type Report struct {
	StatusCounts    []StatusCount    `json:"statusCounts"`
	WeeklyActivity  []ActivityBucket `json:"weeklyActivity"`
	MonthlyActivity []ActivityBucket `json:"monthlyActivity"`
}

// Aggregator computes a Report with a fixed lookback and calendar location.
type Aggregator struct {
	Weeks    int
	Months   int
	Location *time.Location
}

// Build computes all three views for the snapshot. The reference instant is
// interpreted in the aggregator's location to decide which calendar day is "today".
func (a Aggregator) Build(applications []history.Application, reference time.Time) Report {
	weeks := a.Weeks
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	months := a.Months
	if months <= 0 {
		months = DefaultMonths
	}
	location := a.Location
	if location == nil {
		location = time.UTC
	}
	localReference := reference.In(location)

	return Report{
		StatusCounts:    CurrentStatusCounts(applications),
		WeeklyActivity:  WeeklyActivity(applications, localReference, weeks),
		MonthlyActivity: MonthlyActivity(applications, localReference, months),
	}
}

// CurrentStatusCounts counts applications per current status, in first-observed order.
func CurrentStatusCounts(applications []history.Application) []StatusCount {
	counts := make([]StatusCount, 0)
	positions := make(map[string]int)
	for _, application := range applications {
		position, seen := positions[application.Status]
		if !seen {
			positions[application.Status] = len(counts)
			counts = append(counts, StatusCount{Status: application.Status, Count: 1})
			continue
		}
		counts[position].Count++
	}
	return counts
}

// WeeklyActivity returns `weeks` trailing seven-day windows, oldest first; the last
// window ends on the calendar day containing reference.
func WeeklyActivity(applications []history.Application, reference time.Time, weeks int) []ActivityBucket {
	if weeks <= 0 {
		return []ActivityBucket{}
	}
	today := history.CalendarDate(reference)
	buckets := make([]ActivityBucket, 0, weeks)
	for offset := weeks - 1; offset >= 0; offset-- {
		end := today.AddDate(0, 0, -daysPerWeek*offset)
		start := end.AddDate(0, 0, -(daysPerWeek - 1))
		buckets = append(buckets, newBucket(start.Format(weekLabelLayout)+" - "+end.Format(weekLabelLayout), start, end))
	}
	tally(applications, buckets)
	return buckets
}

// MonthlyActivity returns `months` calendar months, oldest first; the last month
// is the one containing reference.
func MonthlyActivity(applications []history.Application, reference time.Time, months int) []ActivityBucket {
	if months <= 0 {
		return []ActivityBucket{}
	}
	year, month, _ := reference.Date()
	buckets := make([]ActivityBucket, 0, months)
	for offset := months - 1; offset >= 0; offset-- {
		start := time.Date(year, month-time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		buckets = append(buckets, newBucket(start.Format(monthLabelLayout), start, end))
	}
	tally(applications, buckets)
	return buckets
}

// tally walks every history event once and counts it in the bucket whose
// inclusive day range contains it. Events outside every bucket are dropped.
func tally(applications []history.Application, buckets []ActivityBucket) {
	statuses := historyStatuses(applications)
	for index := range buckets {
		for _, status := range statuses {
			buckets[index].Counts[status] = 0
		}
	}

	for _, application := range applications {
		for _, event := range application.History {
			bucket := findBucket(buckets, eventDay(event.Date))
			if bucket == nil {
				continue
			}
			bucket.Counts[event.Status]++
		}
	}

	for index := range buckets {
		buckets[index].compact()
	}
}

func findBucket(buckets []ActivityBucket, day time.Time) *ActivityBucket {
	for index := range buckets {
		if buckets[index].Contains(day) {
			return &buckets[index]
		}
	}
	return nil
}

func historyStatuses(applications []history.Application) []string {
	seen := make(map[string]struct{})
	statuses := make([]string, 0)
	for _, application := range applications {
		for _, event := range application.History {
			if _, ok := seen[event.Status]; ok {
				continue
			}
			seen[event.Status] = struct{}{}
			statuses = append(statuses, event.Status)
		}
	}
	return statuses
}

func eventDay(date time.Time) time.Time {
	return history.CalendarDate(date.UTC())
}
