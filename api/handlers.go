// Package api exposes the task log over HTTP. Mutations go through the task
// service, reads for the event stream come from the live task cache, and the
// sign-in dialog is driven step by step through the session endpoints.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/asifanwar1/taskothon/auth"
	"github.com/asifanwar1/taskothon/domain"
	"github.com/asifanwar1/taskothon/export"
	"github.com/asifanwar1/taskothon/stats"
	"github.com/asifanwar1/taskothon/store"
	"github.com/asifanwar1/taskothon/tasks"
)

const requestBodyMaxSize = 1 << 20

// TaskService is the slice of the task operations the handlers use.
type TaskService interface {
	List(ctx context.Context) ([]domain.Task, error)
	Filtered(ctx context.Context, status string, dateRange tasks.DateRange) ([]domain.Task, error)
	ByID(ctx context.Context, id string) (domain.Task, error)
	Create(ctx context.Context, draft domain.Draft) (domain.Task, error)
	Update(ctx context.Context, id string, fields domain.Fields) error
	Delete(ctx context.Context, id string) error
}

// Archiver runs the month-end export on demand.
type Archiver interface {
	ArchivePreviousMonth(ctx context.Context) error
	ArchiveMonth(ctx context.Context, year int, month time.Month) error
	ArchivableTasks(ctx context.Context) ([]domain.Task, error)
}

// Exporter writes a spreadsheet for the manual export endpoint.
type Exporter interface {
	ExportRows(tasks []domain.Task, filename string) error
}

// Dialog is the interactive sign-in state machine.
type Dialog interface {
	Current() auth.Interaction
	SubmitEmail(ctx context.Context, email string) (auth.Interaction, error)
	SubmitOTP(ctx context.Context, code string) (auth.Interaction, error)
	RequestLogout() auth.Interaction
	ConfirmLogout(ctx context.Context) (auth.Interaction, error)
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc TaskService, arch Archiver, dialog Dialog, exporter Exporter, cache *store.Cache[domain.Task], logger *log.Logger) {
	e.GET("/api/tasks", getTasks(svc, logger))
	e.POST("/api/tasks", postTask(svc))
	e.GET("/api/tasks/:id", getTask(svc))
	e.PATCH("/api/tasks/:id", patchTask(svc))
	e.DELETE("/api/tasks/:id", deleteTask(svc))
	e.GET("/api/stats", getStats(svc))
	e.GET("/api/archive", getArchivable(arch))
	e.POST("/api/archive", postArchive(arch))
	e.POST("/api/export", postExport(svc, exporter))
	e.GET("/api/session/step", getStep(dialog))
	e.POST("/api/session/email", postEmail(dialog))
	e.POST("/api/session/otp", postOTP(dialog))
	e.POST("/api/session/logout", postLogout(dialog))
	e.POST("/api/session/logout/confirm", postLogoutConfirm(dialog))
	e.GET("/stream", streamTasks(cache))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// errorResponse maps domain errors onto HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		return c.String(http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return c.String(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		return c.String(http.StatusBadRequest, err.Error())
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func getTasks(svc TaskService, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics := newTaskRequestMetrics(logger, "/api/tasks")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		status := c.QueryParam("status")
		dateRange := tasks.DateRange(c.QueryParam("range"))
		switch dateRange {
		case "", tasks.RangeToday, tasks.RangeWeek, tasks.RangeMonth, tasks.RangeAll:
		default:
			metrics.SetErrorStage("invalid_range")
			err = c.String(http.StatusBadRequest, "invalid range")
			return err
		}
		metrics.SetFiltered(status != "" || dateRange != "")

		fetchStart := time.Now()
		list, fetchErr := svc.Filtered(ctx, status, dateRange)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("fetch")
			err = errorResponse(c, fetchErr)
			return err
		}
		metrics.SetTasksReturned(len(list))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: list})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getTask(svc TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := svc.ByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func postTask(svc TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var draft domain.Draft
		if err := decodeBody(c, &draft); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task, err := svc.Create(c.Request().Context(), draft)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func patchTask(svc TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var fields domain.Fields
		if err := decodeBody(c, &fields); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := svc.Update(c.Request().Context(), c.Param("id"), fields); err != nil {
			return errorResponse(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteTask(svc TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
			return errorResponse(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getStats(svc TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := svc.List(c.Request().Context())
		if err != nil {
			return errorResponse(c, err)
		}
		today := time.Now().Format(domain.DateLayout)
		return c.JSON(http.StatusOK, statsResponse{
			Summary:  stats.Summarize(list, today),
			PerDay:   stats.TasksPerDay(list),
			ByStatus: stats.CountByStatus(list),
			Tickets:  stats.CountTicketCoverage(list),
		})
	}
}

func getArchivable(arch Archiver) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := arch.ArchivableTasks(c.Request().Context())
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: list})
	}
}

// postArchive archives a named month, or the previous calendar month when
// the body names none.
func postArchive(arch Archiver) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req archiveRequest
		if c.Request().ContentLength != 0 {
			if err := decodeBody(c, &req); err != nil {
				return c.String(http.StatusBadRequest, "invalid body")
			}
		}
		ctx := c.Request().Context()
		if req.Year == 0 && req.Month == 0 {
			if err := arch.ArchivePreviousMonth(ctx); err != nil {
				return errorResponse(c, err)
			}
			return c.NoContent(http.StatusAccepted)
		}
		if req.Year <= 0 || req.Month < 1 || req.Month > 12 {
			return c.String(http.StatusBadRequest, "invalid month")
		}
		if err := arch.ArchiveMonth(ctx, req.Year, time.Month(req.Month)); err != nil {
			return errorResponse(c, err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

// postExport writes the currently filtered list to a spreadsheet, named by
// the month the export runs in.
func postExport(svc TaskService, exporter Exporter) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := c.QueryParam("status")
		dateRange := tasks.DateRange(c.QueryParam("range"))
		switch dateRange {
		case "", tasks.RangeToday, tasks.RangeWeek, tasks.RangeMonth, tasks.RangeAll:
		default:
			return c.String(http.StatusBadRequest, "invalid range")
		}
		list, err := svc.Filtered(c.Request().Context(), status, dateRange)
		if err != nil {
			return errorResponse(c, err)
		}
		now := time.Now()
		filename := export.MonthFilename(now.Year(), int(now.Month()))
		if err := exporter.ExportRows(list, filename); err != nil {
			return errorResponse(c, &domain.ExportError{Stage: "export", Err: err})
		}
		return c.JSON(http.StatusOK, exportResponse{File: filename, Count: len(list)})
	}
}

func getStep(dialog Dialog) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, auth.StepPayload(dialog.Current()))
	}
}

func postEmail(dialog Dialog) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req emailRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		step, err := dialog.SubmitEmail(c.Request().Context(), req.Email)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, auth.StepPayload(step))
	}
}

func postOTP(dialog Dialog) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req otpRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		step, err := dialog.SubmitOTP(c.Request().Context(), req.Code)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, auth.StepPayload(step))
	}
}

func postLogout(dialog Dialog) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, auth.StepPayload(dialog.RequestLogout()))
	}
}

func postLogoutConfirm(dialog Dialog) echo.HandlerFunc {
	return func(c echo.Context) error {
		step, err := dialog.ConfirmLogout(c.Request().Context())
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, auth.StepPayload(step))
	}
}
