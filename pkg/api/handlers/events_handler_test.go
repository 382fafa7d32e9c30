package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/state"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/dto"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/handlers"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

type fakeActivity struct {
	entries   []state.HistoryEntry
	err       error
	lastLimit int
}

func (f *fakeActivity) GetRecentHistory(ctx context.Context, limit int) ([]state.HistoryEntry, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

type fakeSubscriber struct {
	events []state.TransitionEvent
	err    error
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, handler func(state.TransitionEvent) error) error {
	for _, event := range f.events {
		if err := handler(event); err != nil {
			return err
		}
	}
	return f.err
}

// sseRecorder adds the CloseNotify method gin's Stream helper asserts on
// the response writer.
type sseRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newSSERecorder() *sseRecorder {
	return &sseRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *sseRecorder) CloseNotify() <-chan bool { return r.closed }

func TestRecentEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recentRouter := func(activity handlers.RecentActivity) *gin.Engine {
		handler := handlers.NewEventsHandler(activity, &fakeSubscriber{}, testLogger())
		router := gin.Default()
		router.GET("/api/v1/events/recent", handler.RecentEvents)
		return router
	}

	t.Run("returns recorded transitions", func(t *testing.T) {
		impA := uuid.MustParse("11111111-1111-1111-1111-111111111111")
		impB := uuid.MustParse("22222222-2222-2222-2222-222222222222")
		parsing := "parsing"
		activity := &fakeActivity{entries: []state.HistoryEntry{
			{ImportID: impB, OldStatus: &parsing, NewStatus: "completed", ChangedAt: time.Now()},
			{ImportID: impA, NewStatus: "received", ChangedAt: time.Now().Add(-time.Minute)},
		}}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/events/recent", nil)
		w := httptest.NewRecorder()
		recentRouter(activity).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
		}

		var resp dto.ImportEventsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if len(resp.Events) != 2 {
			t.Fatalf("len(Events) = %d, want 2", len(resp.Events))
		}
		if resp.Events[0].ImportID != impB.String() {
			t.Errorf("Events[0].ImportID = %q, want %q", resp.Events[0].ImportID, impB.String())
		}
		if resp.Events[0].OldStatus == nil || *resp.Events[0].OldStatus != "parsing" {
			t.Errorf("Events[0].OldStatus = %v, want parsing", resp.Events[0].OldStatus)
		}
		if resp.Events[0].NewStatus != "completed" {
			t.Errorf("Events[0].NewStatus = %q, want completed", resp.Events[0].NewStatus)
		}
		if resp.Events[1].OldStatus != nil {
			t.Errorf("Events[1].OldStatus = %v, want nil", resp.Events[1].OldStatus)
		}
	})

	t.Run("limit defaults to 50", func(t *testing.T) {
		activity := &fakeActivity{}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/events/recent", nil)
		w := httptest.NewRecorder()
		recentRouter(activity).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
		}
		if activity.lastLimit != 50 {
			t.Errorf("limit = %d, want 50", activity.lastLimit)
		}
	})

	t.Run("explicit limit is passed through", func(t *testing.T) {
		activity := &fakeActivity{}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/events/recent?limit=5", nil)
		w := httptest.NewRecorder()
		recentRouter(activity).ServeHTTP(w, req)

		if activity.lastLimit != 5 {
			t.Errorf("limit = %d, want 5", activity.lastLimit)
		}
	})

	t.Run("out of range limit is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/events/recent?limit=0", nil)
		w := httptest.NewRecorder()
		recentRouter(&fakeActivity{}).ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if resp := decodeError(t, w.Body); resp.Code != "VALIDATION_ERROR" {
			t.Errorf("Code = %q, want VALIDATION_ERROR", resp.Code)
		}
	})

	t.Run("history errors surface as 500", func(t *testing.T) {
		activity := &fakeActivity{err: errors.New("connection reset")}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/events/recent", nil)
		w := httptest.NewRecorder()
		recentRouter(activity).ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})

	t.Run("unconfigured history returns 503", func(t *testing.T) {
		handler := handlers.NewEventsHandler(nil, &fakeSubscriber{}, testLogger())
		router := gin.Default()
		router.GET("/api/v1/events/recent", handler.RecentEvents)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/events/recent", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
		if resp := decodeError(t, w.Body); resp.Code != "EVENTS_UNAVAILABLE" {
			t.Errorf("Code = %q, want EVENTS_UNAVAILABLE", resp.Code)
		}
	})
}

func TestStreamEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("writes one frame per transition", func(t *testing.T) {
		subscriber := &fakeSubscriber{events: []state.TransitionEvent{
			{EntityType: "import", EntityID: "imp1", NewStatus: models.ImportParsing},
			{EntityType: "import", EntityID: "imp1", OldStatus: models.ImportParsing, NewStatus: models.ImportCompleted},
		}}
		handler := handlers.NewEventsHandler(&fakeActivity{}, subscriber, testLogger())

		router := gin.Default()
		router.GET("/api/v1/events/stream", handler.StreamEvents)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/events/stream", nil)
		w := newSSERecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
		}
		if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
			t.Errorf("Content-Type = %q, want text/event-stream", ct)
		}

		body := w.Body.String()
		if got := strings.Count(body, "event:transition"); got != 2 {
			t.Errorf("transition frames = %d, want 2 (body %q)", got, body)
		}
		if !strings.Contains(body, `"import_id":"imp1"`) {
			t.Errorf("body %q does not carry the import id", body)
		}
		if !strings.Contains(body, `"new_status":"completed"`) {
			t.Errorf("body %q does not carry the final status", body)
		}
		if !strings.Contains(body, `"old_status":"parsing"`) {
			t.Errorf("body %q does not carry the prior status", body)
		}
	})

	t.Run("unconfigured subscriber returns 503", func(t *testing.T) {
		handler := handlers.NewEventsHandler(&fakeActivity{}, nil, testLogger())
		router := gin.Default()
		router.GET("/api/v1/events/stream", handler.StreamEvents)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/events/stream", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
		if resp := decodeError(t, w.Body); resp.Code != "EVENTS_UNAVAILABLE" {
			t.Errorf("Code = %q, want EVENTS_UNAVAILABLE", resp.Code)
		}
	})
}
