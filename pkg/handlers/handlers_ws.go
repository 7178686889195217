package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arnavshah/ionm-board/pkg/board"
	"github.com/arnavshah/ionm-board/pkg/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 16 * 1024,
}

// Client message types
const (
	msgDrop       = "drop"
	msgDutyEdit   = "duty_edit"
	msgDutyCommit = "duty_commit"
	msgReset      = "reset"
	msgResync     = "resync"
)

// WSRequest is a gesture sent by a board client
type WSRequest struct {
	Type    string              `json:"type"`
	Drop    *models.DropPayload `json:"drop,omitempty"`
	Slot    string              `json:"slot,omitempty"`
	Text    string              `json:"text,omitempty"`
	Confirm bool                `json:"confirm,omitempty"`
}

// WSResponse is pushed to a board client
type WSResponse struct {
	Type    string          `json:"type"`
	Board   *board.Snapshot `json:"board,omitempty"`
	Error   string          `json:"error,omitempty"`
	Cleared int64           `json:"cleared,omitempty"`
}

// BoardSocket serves a live board. Each connection gets its own session
// with its own subscription to the change feed and its own duty drafts.
func (h *Handler) BoardSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("failed to upgrade the websocket", zap.Error(err))
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sess := board.NewSession(h.Store, h.Engine, h.Logger)
	defer sess.Close()

	out := make(chan WSResponse, 8)
	if err := sess.Start(ctx); err != nil {
		out <- WSResponse{Type: "error", Error: err.Error()}
	}

	snapshots, stopWatch, err := sess.Watch(ctx)
	if err != nil {
		return
	}
	defer stopWatch()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			var msg WSResponse
			select {
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				msg = WSResponse{Type: "board", Board: &snap}
			case msg = <-out:
			case <-ctx.Done():
				return
			}
			if err := ws.WriteJSON(msg); err != nil {
				h.Logger.Debug("board socket write failed", zap.Error(err))
				cancel()
				_ = ws.Close()
				return
			}
		}
	}()

	h.Logger.Info("board client connected")
	for {
		var req WSRequest
		if err := ws.ReadJSON(&req); err != nil {
			h.Logger.Info("board client disconnected", zap.Error(err))
			break
		}
		resp, err := h.handleGesture(ctx, sess, req)
		if err != nil {
			resp = WSResponse{Type: "error", Error: err.Error()}
		}
		if resp.Type == "" {
			continue
		}
		select {
		case out <- resp:
		case <-ctx.Done():
		}
	}

	cancel()
	<-writerDone
}

func (h *Handler) handleGesture(ctx context.Context, sess *board.Session, req WSRequest) (WSResponse, error) {
	switch req.Type {
	case msgDrop:
		if req.Drop == nil {
			return WSResponse{}, board.ErrInvalidPayload
		}
		_, err := sess.Drop(ctx, *req.Drop)
		return WSResponse{}, err
	case msgDutyEdit:
		return WSResponse{}, sess.EditDuty(ctx, req.Slot, req.Text)
	case msgDutyCommit:
		return WSResponse{}, sess.CommitDuty(ctx, req.Slot)
	case msgReset:
		n, err := sess.ResetBoard(ctx, req.Confirm)
		if err != nil {
			return WSResponse{}, err
		}
		return WSResponse{Type: "reset", Cleared: n}, nil
	case msgResync:
		return WSResponse{}, sess.Resync(ctx)
	}
	return WSResponse{Type: "error", Error: "unknown message type " + req.Type}, nil
}
