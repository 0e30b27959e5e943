// Package stats computes the derived productivity views. All functions are
// pure and deterministic over their input sequence.
package stats

import (
	"sort"
	"time"

	"github.com/asifanwar1/taskothon/domain"
)

// DayCount is one task-count bucket for a calendar day.
type DayCount struct {
	Date  string `json:"date"`  // ISO date, bucket key
	Label string `json:"label"` // display form, e.g. "15 Jan, 2024"
	Count int    `json:"count"`
}

// StatusCounts holds the three fixed status buckets. Empty buckets are
// explicit zeros.
type StatusCounts struct {
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	Done       int `json:"done"`
}

// TicketCoverage splits tasks by presence of an external ticket link.
type TicketCoverage struct {
	WithTicket    int `json:"withTicket"`
	WithoutTicket int `json:"withoutTicket"`
}

// Summary is the headline card: totals plus today's count.
type Summary struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	Done       int `json:"done"`
	Today      int `json:"today"`
}

// TasksPerDay buckets tasks by calendar date and returns at most the 7 most
// recent buckets in ascending chronological order.
func TasksPerDay(tasks []domain.Task) []DayCount {
	counts := map[string]int{}
	for _, t := range tasks {
		counts[t.Date]++
	}

	out := make([]DayCount, 0, len(counts))
	for date, count := range counts {
		out = append(out, DayCount{Date: date, Label: displayDate(date), Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	if len(out) > 7 {
		out = out[len(out)-7:]
	}
	return out
}

// CountByStatus tallies the three status buckets.
func CountByStatus(tasks []domain.Task) StatusCounts {
	var c StatusCounts
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusTodo:
			c.Todo++
		case domain.StatusInProgress:
			c.InProgress++
		case domain.StatusDone:
			c.Done++
		}
	}
	return c
}

// CountTicketCoverage splits tasks by whether they carry an external link.
func CountTicketCoverage(tasks []domain.Task) TicketCoverage {
	var c TicketCoverage
	for _, t := range tasks {
		if t.JiraLink != "" {
			c.WithTicket++
		} else {
			c.WithoutTicket++
		}
	}
	return c
}

// Summarize builds the headline summary relative to today.
func Summarize(tasks []domain.Task, today string) Summary {
	s := Summary{Total: len(tasks)}
	byStatus := CountByStatus(tasks)
	s.Todo = byStatus.Todo
	s.InProgress = byStatus.InProgress
	s.Done = byStatus.Done
	for _, t := range tasks {
		if t.Date == today {
			s.Today++
		}
	}
	return s
}

// displayDate renders an ISO date as "02 Jan, 2006". Unparsable dates fall
// back to the raw key so a bucket is never dropped.
func displayDate(date string) string {
	ts, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return date
	}
	return ts.Format("02 Jan, 2006")
}
