package ginserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"direct-messaging/internal/app/chat"
	"direct-messaging/internal/app/dto"
	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/infra/realtime"
	"direct-messaging/internal/store"
)

const (
	defaultReadTimeout     = 60 * time.Second
	defaultInflightTimeout = 5 * time.Second
	maxFrameSize           = 1 << 16
)

// LiveHTTP exposes the websocket endpoint.
type LiveHTTP interface {
	Live(c *gin.Context)
}

// LiveHandler runs one chat session per websocket. Listing and thread snapshots are pushed
// as they change; the client drives selection, drafts, sends and deletes with frames.
type LiveHandler struct {
	Service         *chat.Service
	Registry        *realtime.Registry
	AllowedOrigins  []string
	InflightTimeout time.Duration
	Logger          *slog.Logger
}

type inboundFrame struct {
	Type            string  `json:"type"`
	RecipientID     string  `json:"recipient_id,omitempty"`
	ParticipantID   string  `json:"participant_id,omitempty"`
	Text            *string `json:"text,omitempty"`
	ConversationKey string  `json:"conversation_key,omitempty"`
	Confirm         string  `json:"confirm,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type ackFrame struct {
	Type            string `json:"type"`
	ActorID         string `json:"actor_id,omitempty"`
	RecipientID     string `json:"recipient_id,omitempty"`
	ConversationKey string `json:"conversation_key,omitempty"`
}

type conversationsFrame struct {
	Type  string                    `json:"type"`
	Items []dto.ConversationSummary `json:"items"`
	Error string                    `json:"error,omitempty"`
}

type threadFrame struct {
	Type            string            `json:"type"`
	ConversationKey string            `json:"conversation_key"`
	Items           []dto.ChatMessage `json:"items"`
	Error           string            `json:"error,omitempty"`
}

type sentFrame struct {
	Type    string          `json:"type"`
	Message dto.ChatMessage `json:"message"`
}

type deletedFrame struct {
	Type   string           `json:"type"`
	Result dto.DeleteResult `json:"result"`
}

func (h LiveHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(h.AllowedOrigins, "*") || slices.Contains(h.AllowedOrigins, origin)
		},
	}
}

// Live upgrades the request and processes frames until the client disconnects.
func (h LiveHandler) Live(c *gin.Context) {
	principal, ok := requireActor(c)
	if !ok {
		return
	}
	if h.Service == nil || h.Registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	up := h.upgrader()
	ws, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response.
		h.logger().Warn("websocket upgrade failed", "actor_id", principal.ID, "error", err)
		return
	}

	conn := realtime.NewConnection(principal.ID, ws)
	if !h.Registry.Attach(conn) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"), time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}
	h.logger().Debug("live session attached", "actor_id", principal.ID,
		"actor_connections", h.Registry.ActorConnections(principal.ID), "connections", h.Registry.Len())
	session := h.Service.NewSession(principal.actor(), chat.Observers{
		OnListing: func(l chat.Listing) { h.push(conn, listingFrame(l)) },
		OnView:    func(v chat.View) { h.push(conn, viewFrame(v)) },
	})
	defer func() {
		session.Close()
		h.Registry.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
	})

	ctx := c.Request.Context()
	if err := session.Start(ctx); err != nil {
		h.replyError(conn, err)
	}
	h.push(conn, ackFrame{Type: "connected", ActorID: principal.ID})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				h.logger().Debug("websocket read ended", "actor_id", principal.ID, "error", err)
			}
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.push(conn, errorFrame{Type: "error", Code: "bad_request", Error: "invalid payload"})
			continue
		}
		h.handleFrame(ctx, conn, session, frame)
	}
}

func (h LiveHandler) handleFrame(parent context.Context, conn *realtime.Connection, session *chat.Session, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(parent, h.inflightTimeout())
	defer cancel()

	switch frame.Type {
	case "select":
		var err error
		if frame.ParticipantID != "" {
			err = session.SelectParticipant(ctx, frame.ParticipantID)
		} else {
			err = session.SelectRecipient(ctx, frame.RecipientID)
		}
		if err != nil {
			h.replyError(conn, err)
			return
		}
		entry, key := session.Selected()
		h.push(conn, ackFrame{Type: "selected", RecipientID: entry.ID, ConversationKey: string(key)})
	case "draft":
		if frame.Text != nil {
			session.SetDraft(*frame.Text)
		}
	case "send":
		if frame.Text != nil {
			session.SetDraft(*frame.Text)
		}
		saved, err := session.Send(ctx)
		if err != nil {
			h.replyError(conn, err)
			return
		}
		h.push(conn, sentFrame{Type: "sent", Message: dto.FromMessage(saved)})
	case "refresh":
		if err := session.RefreshDirectory(ctx); err != nil {
			h.replyError(conn, err)
			return
		}
		h.push(conn, ackFrame{Type: "refreshed", ActorID: conn.ActorID})
	case "delete":
		_, selected := session.Selected()
		key := conversation.Key(frame.ConversationKey)
		if key != selected {
			h.push(conn, errorFrame{Type: "error", Code: "bad_request", Error: "conversation is not selected", Field: "conversation_key"})
			return
		}
		var confirm chat.Confirmation
		if frame.Confirm == frame.ConversationKey {
			confirm = chat.Confirm(key)
		}
		result, err := session.DeleteConversation(ctx, confirm)
		if err != nil {
			h.replyError(conn, err)
			return
		}
		h.push(conn, deletedFrame{Type: "deleted", Result: dto.FromDeleteResult(result, nil)})
	default:
		h.push(conn, errorFrame{Type: "error", Code: "unsupported_type", Error: "unknown frame type"})
	}
}

func (h LiveHandler) replyError(conn *realtime.Connection, err error) {
	status, _ := chatErrorResponse(err)
	frame := errorFrame{Type: "error", Code: string(store.CodeOf(err)), Error: err.Error()}
	var (
		validation *chat.ValidationError
		dispatch   *chat.DispatchError
		partial    *chat.PartialDeleteError
	)
	switch {
	case errors.As(err, &validation):
		frame.Code = "bad_request"
		frame.Error = validation.Reason
		frame.Field = validation.Field
	case errors.Is(err, chat.ErrNotParticipant):
		frame.Code = "forbidden"
	case errors.As(err, &dispatch):
		frame.Code = string(dispatch.Code)
		frame.Error = dispatch.Message
	case errors.As(err, &partial):
		result := chat.DeleteResult{Key: partial.Key, Expected: partial.Expected, Deleted: partial.Deleted}
		h.push(conn, deletedFrame{Type: "deleted", Result: dto.FromDeleteResult(result, partial.Failures)})
		frame.Code = "partial_delete"
	}
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	h.logger().Log(context.Background(), level, "live request failed", "actor_id", conn.ActorID, "code", frame.Code, "error", err)
	h.push(conn, frame)
}

func (h LiveHandler) push(conn *realtime.Connection, frame any) {
	if err := conn.SendJSON(frame); err != nil && !errors.Is(err, realtime.ErrConnectionClosed) {
		h.logger().Warn("live push failed", "actor_id", conn.ActorID, "connection_id", conn.ID, "error", err)
	}
}

func (h LiveHandler) inflightTimeout() time.Duration {
	if h.InflightTimeout > 0 {
		return h.InflightTimeout
	}
	return defaultInflightTimeout
}

func (h LiveHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func listingFrame(l chat.Listing) conversationsFrame {
	frame := conversationsFrame{Type: "conversations", Items: dto.FromSummaries(l.Summaries).Items}
	if l.Err != nil {
		frame.Error = l.Err.Error()
	}
	return frame
}

func viewFrame(v chat.View) threadFrame {
	frame := threadFrame{Type: "thread", ConversationKey: string(v.Key), Items: dto.FromMessages(string(v.Key), v.Messages).Items}
	if v.Err != nil {
		frame.Error = v.Err.Error()
	}
	return frame
}

var _ LiveHTTP = LiveHandler{}
