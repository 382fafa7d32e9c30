package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/state"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/dto"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/middleware"
)

// streamBuffer is the per-client event backlog. A client that cannot
// drain it loses events; the feed is best-effort and history remains
// queryable.
const streamBuffer = 16

// EventSubscriber delivers live import status transitions until the
// context ends.
type EventSubscriber interface {
	Subscribe(ctx context.Context, handler func(state.TransitionEvent) error) error
}

// RecentActivity reads recorded transitions across all imports.
type RecentActivity interface {
	GetRecentHistory(ctx context.Context, limit int) ([]state.HistoryEntry, error)
}

// EventsHandler serves the import event feed: a catch-up query over
// recorded history and a live server-sent-events stream.
type EventsHandler struct {
	activity   RecentActivity  // nil disables the recent endpoint
	subscriber EventSubscriber // nil disables the stream endpoint
	logger     *logrus.Logger
}

// NewEventsHandler creates the event feed handler.
func NewEventsHandler(activity RecentActivity, subscriber EventSubscriber, logger *logrus.Logger) *EventsHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EventsHandler{
		activity:   activity,
		subscriber: subscriber,
		logger:     logger,
	}
}

// RecentEvents handles GET /api/v1/events/recent
// @Summary Recent import status transitions
// @Description Get the latest recorded status transitions across all imports, newest first
// @Tags events
// @Produce json
// @Param limit query int false "Maximum transitions to return" default(50)
// @Success 200 {object} dto.ImportEventsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/events/recent [get]
func (h *EventsHandler) RecentEvents(c *gin.Context) {
	if h.activity == nil {
		middleware.AbortWithError(c, http.StatusServiceUnavailable, "EVENTS_UNAVAILABLE", "Status history is not configured")
		return
	}

	var q dto.EventsQueryParams
	if !middleware.BindQueryAndValidate(c, &q) {
		return
	}

	entries, err := h.activity.GetRecentHistory(c.Request.Context(), q.Limit)
	if err != nil {
		middleware.AbortWithDomainError(c, err)
		return
	}

	events := make([]dto.ImportEvent, len(entries))
	for i, entry := range entries {
		events[i] = dto.ImportEvent{
			ImportID:  entry.ImportID.String(),
			OldStatus: entry.OldStatus,
			NewStatus: entry.NewStatus,
			ChangedAt: entry.ChangedAt,
			Metadata:  entry.Metadata,
		}
	}

	c.JSON(http.StatusOK, dto.ImportEventsResponse{Events: events})
}

// StreamEvents handles GET /api/v1/events/stream
// @Summary Live import status transitions
// @Description Stream status transitions as server-sent events until the client disconnects
// @Tags events
// @Produce text/event-stream
// @Success 200 {object} dto.ImportEvent
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/events/stream [get]
func (h *EventsHandler) StreamEvents(c *gin.Context) {
	if h.subscriber == nil {
		middleware.AbortWithError(c, http.StatusServiceUnavailable, "EVENTS_UNAVAILABLE", "Live events are not configured")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	events := make(chan state.TransitionEvent, streamBuffer)
	go func() {
		err := h.subscriber.Subscribe(ctx, func(event state.TransitionEvent) error {
			select {
			case events <- event:
			default: // client is not draining; drop
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			h.logger.WithError(err).Warn("Event stream subscription ended")
		}
		close(events)
	}()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("transition", toStreamEvent(event))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func toStreamEvent(event state.TransitionEvent) dto.ImportEvent {
	var old *string
	if event.OldStatus != "" {
		s := string(event.OldStatus)
		old = &s
	}
	return dto.ImportEvent{
		ImportID:  event.EntityID,
		OldStatus: old,
		NewStatus: string(event.NewStatus),
		ChangedAt: time.Now().UTC(),
		Metadata:  event.Metadata,
	}
}
