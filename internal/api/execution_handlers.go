package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/execution"
	"github.com/terra-clan/staffing-engine/internal/models"
)

const (
	contentTypeSSE    = "text/event-stream"
	contentTypeNDJSON = "application/x-ndjson"

	wsWriteWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ObserverMessage is written to execution observers. The first message is a
// snapshot of the task, every following one carries an execution event.
type ObserverMessage struct {
	Type  string                 `json:"type"`
	Task  *models.Task           `json:"task,omitempty"`
	Event *models.ExecutionEvent `json:"event,omitempty"`
	Error string                 `json:"error,omitempty"`
}

// handleExecuteTask runs the task's playbook and streams progress back on the
// response. Server-sent events are the default; clients asking for
// application/x-ndjson get one JSON event per line.
func (s *Server) handleExecuteTask(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "response does not support streaming")
		return
	}

	taskID := chi.URLParam(r, "id")
	run, err := s.staffing.ExecuteTask(r.Context(), taskID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	ndjson := strings.Contains(r.Header.Get("Accept"), contentTypeNDJSON)
	if ndjson {
		w.Header().Set("Content-Type", contentTypeNDJSON)
	} else {
		w.Header().Set("Content-Type", contentTypeSSE)
		w.Header().Set("Connection", "keep-alive")
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := execution.SinkFunc(func(ev models.ExecutionEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if ndjson {
			_, err = fmt.Fprintf(w, "%s\n", data)
		} else {
			_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		}
		if err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if err := run.Execute(r.Context(), sink); err != nil {
		s.requestLogger(r).Warn("execution stream ended with error",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}
}

// handleExecutionWS lets any number of clients watch a task's execution,
// including runs started on other instances when the bus is Redis-backed
func (s *Server) handleExecutionWS(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		respondError(w, http.StatusServiceUnavailable, "observer_disabled", "execution observers are not enabled")
		return
	}

	taskID := chi.URLParam(r, "id")
	if _, err := s.staffing.GetTask(r.Context(), taskID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// subscribe before the snapshot so nothing between the two is lost
	events, unsubscribe, err := s.bus.Subscribe(ctx, taskID)
	if err != nil {
		s.requestLogger(r).Error("failed to subscribe to execution events", zap.String("task_id", taskID), zap.Error(err))
		s.writeObserverMessage(conn, ObserverMessage{Type: "error", Error: "failed to subscribe"})
		return
	}
	defer unsubscribe()

	task, err := s.staffing.GetTask(ctx, taskID)
	if err != nil {
		s.writeObserverMessage(conn, ObserverMessage{Type: "error", Error: err.Error()})
		return
	}
	if err := s.writeObserverMessage(conn, ObserverMessage{Type: "snapshot", Task: task}); err != nil {
		return
	}

	log := s.requestLogger(r).With(zap.String("task_id", taskID))
	log.Debug("execution observer connected")

	// observers only listen; reading surfaces the close frame
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("observer read error", zap.Error(err))
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeObserverMessage(conn, ObserverMessage{Type: "event", Event: &ev}); err != nil {
				return
			}
			if ev.Terminal() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(ev.Type)),
					time.Now().Add(wsWriteWait))
				return
			}
		}
	}
}

func (s *Server) writeObserverMessage(conn *websocket.Conn, msg ObserverMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("failed to write observer message", zap.Error(err))
		return err
	}
	return nil
}
