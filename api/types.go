package api

import (
	"github.com/asifanwar1/taskothon/domain"
	"github.com/asifanwar1/taskothon/stats"
)

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type statsResponse struct {
	Summary  stats.Summary        `json:"summary"`
	PerDay   []stats.DayCount     `json:"perDay"`
	ByStatus stats.StatusCounts   `json:"byStatus"`
	Tickets  stats.TicketCoverage `json:"tickets"`
}

type exportResponse struct {
	File  string `json:"file"`
	Count int    `json:"count"`
}

type archiveRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type otpRequest struct {
	Code string `json:"code"`
}
