package domain

import (
	"sort"
	"time"
)

// Status is the workflow state of a task. The JSON values match what the
// task board renders, including the space in "In Progress".
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

const (
	// DateLayout is the calendar-date form used everywhere: no time zone.
	DateLayout = "2006-01-02"
	// TimeLayout is the wall-clock time-of-day form.
	TimeLayout = "15:04"
)

// Task represents a single logged work item.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Status      Status `json:"status"`
	JiraLink    string `json:"jiraLink,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Draft is a task before storage has assigned it an identity.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Status      Status `json:"status"`
	JiraLink    string `json:"jiraLink,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Fields is a partial update. It deliberately has no date or time: the
// combined timestamp is immutable after creation.
type Fields struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
	JiraLink    *string `json:"jiraLink,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// Empty reports whether the update carries no changes at all.
func (f Fields) Empty() bool {
	return f.Title == nil && f.Description == nil && f.Status == nil &&
		f.JiraLink == nil && f.Category == nil
}

// When combines date and time into a single instant used for all ordering.
// A task that fails to parse sorts to the zero time, i.e. before everything.
func (t Task) When() time.Time {
	ts, err := time.ParseInLocation(DateLayout+"T"+TimeLayout, t.Date+"T"+t.Time, time.Local)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// SortByDateDesc orders tasks newest first by their combined date and time.
// The sort is stable: running it again on its own output changes nothing.
func SortByDateDesc(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].When().After(tasks[j].When())
	})
}
