package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/commitcanvas/pkg/diffpointer"
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/session"
)

// Client message types.
const (
	clientDragStart = "drag_start"
	clientDragMove  = "drag_move"
	clientDragEnd   = "drag_end"
	clientCursor    = "cursor"
	clientCancel    = "cancel"
)

const (
	maxMessageBytes = 64 << 10
	dragEndTimeout  = 5 * time.Second
)

// clientMessage is a client-to-server WebSocket frame. X and Y are graph
// coordinates unless a viewport is given, in which case a cursor message
// carries screen coordinates.
type clientMessage struct {
	Type     string                `json:"type"`
	Node     string                `json:"node,omitempty"`
	Modifier bool                  `json:"modifier,omitempty"`
	X        float64               `json:"x"`
	Y        float64               `json:"y"`
	Viewport *diffpointer.Viewport `json:"viewport,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts clients without an Origin header (non-browser tools)
// and browsers served from the API host itself.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.mgr.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	h, err := s.hub(id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.log.Debug("websocket upgrade failed", "tab", id, "err", err)
		return
	}
	c := newClient(conn)
	if !h.join(c) {
		_ = conn.Close()
		return
	}
	go c.writePump()
	s.log.Debug("websocket connected", "tab", id, "clients", h.clientCount())

	defer func() {
		h.leave(c)
		if c.dragging {
			// A dropped connection must not leave its drag half done.
			ctx, cancel := context.WithTimeout(context.Background(), dragEndTimeout)
			_ = sess.EndDrag(ctx)
			cancel()
		}
		s.log.Debug("websocket disconnected", "tab", id)
	}()

	conn.SetReadLimit(maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(c, errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed message"))
			continue
		}
		if err := s.dispatch(r.Context(), id, sess, c, msg); err != nil {
			s.reply(c, err)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, id string, sess *session.GraphSession, c *client, msg clientMessage) error {
	switch msg.Type {
	case clientDragStart:
		if err := sess.BeginDrag(msg.Node, msg.Modifier); err != nil {
			return err
		}
		c.dragging = true
		return nil
	case clientDragMove:
		moved, err := sess.DragMove(msg.X, msg.Y)
		if err != nil {
			return err
		}
		if len(moved) > 0 {
			if data, err := json.Marshal(message{Type: msgPositions, Positions: moved}); err == nil {
				c.enqueue(data)
			}
		}
		return nil
	case clientDragEnd:
		c.dragging = false
		return sess.EndDrag(ctx)
	case clientCursor:
		moveCursor(sess, diffCursorRequest{X: msg.X, Y: msg.Y, Viewport: msg.Viewport})
		return nil
	case clientCancel:
		sess.CancelDiff()
		s.pushDiffState(id, sess)
		return nil
	}
	return errors.New(errors.ErrCodeInvalidInput, "unknown message type %q", msg.Type)
}

// reply sends err to one client as a notification.
func (s *Server) reply(c *client, err error) {
	n := session.Notification{
		Level:   session.LevelWarning,
		Code:    errors.GetCode(err),
		Message: errors.UserMessage(err),
	}
	if n.Code == "" {
		n.Code = errors.ErrCodeInternal
	}
	if data, err := json.Marshal(message{Type: msgNotification, Notification: &n}); err == nil {
		c.enqueue(data)
	}
}
