package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"tourplanner/internal/delivery/api/response"
	deliverycontext "tourplanner/internal/delivery/context"
	"tourplanner/internal/usecase"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second
	readLimit  = 4 << 10
)

// EventHandlerParams holds dependencies for EventHandler, injected by Fx.
type EventHandlerParams struct {
	fx.In

	TourUC usecase.TourUsecase
	Logger *slog.Logger
}

// EventHandler streams session change events over websocket
type EventHandler struct {
	tourUC   usecase.TourUsecase
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewEventHandler is the constructor for EventHandler
func NewEventHandler(params EventHandlerParams) *EventHandler {
	return &EventHandler{
		tourUC:   params.TourUC,
		logger:   params.Logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }},
	}
}

// Stream sends one JSON message per committed change of the session until
// the client disconnects or the session is deleted.
func (h *EventHandler) Stream(c echo.Context) error {
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	id := c.Param("id")
	events, unsubscribe, err := h.tourUC.Subscribe(ctx, id)
	if err != nil {
		return response.HandleAppError(c, err)
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader already answered the client.
		return nil
	}
	defer func() { _ = conn.Close() }()

	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger).With(slog.String("session_id", id))
	logger.Debug("Event stream opened")

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Client messages are ignored; reading surfaces disconnects and pongs.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				logger.Debug("Event stream closed by session")

				return nil
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug("Event stream write failed", slog.Any("error", err))

				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-ctx.Done():
			logger.Debug("Event stream closed by client")

			return nil
		}
	}
}
