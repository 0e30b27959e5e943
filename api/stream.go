package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/asifanwar1/taskothon/domain"
	"github.com/asifanwar1/taskothon/store"
)

// streamTasks pushes the current task snapshot over SSE: once on connect and
// again after every cache delivery. The cache subscription is released when
// the client goes away, so an idle server holds no live query open.
func streamTasks(cache *store.Cache[domain.Task]) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		ctx := c.Request().Context()

		updates := make(chan struct{}, 1)
		unsubscribe := cache.Subscribe(func() {
			select {
			case updates <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		// A cold cache delivers synchronously inside Subscribe; the loop
		// below writes that snapshot itself, so drop the pending tick.
		select {
		case <-updates:
		default:
		}

		for {
			data, err := sonic.ConfigStd.Marshal(cache.Snapshot())
			if err != nil {
				c.Logger().Error(err)
				return err
			}
			if _, err := c.Response().Write([]byte("data: ")); err != nil {
				return err
			}
			if _, err := c.Response().Write(data); err != nil {
				return err
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return err
			}
			flusher.Flush()
			select {
			case <-ctx.Done():
				return nil
			case <-updates:
				continue
			}
		}
	}
}
