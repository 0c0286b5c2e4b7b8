package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/commitcanvas/pkg/diffpointer"
	"github.com/matzehuels/commitcanvas/pkg/graph"
	"github.com/matzehuels/commitcanvas/pkg/session"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Server message types.
const (
	msgNodes        = "nodes"
	msgEdges        = "edges"
	msgNotification = "notification"
	msgDiff         = "diff"
	msgPositions    = "positions"
)

// message is a server-to-client WebSocket frame.
type message struct {
	Type         string                `json:"type"`
	Nodes        []graph.Node          `json:"nodes,omitempty"`
	Edges        []graph.Edge          `json:"edges,omitempty"`
	Notification *session.Notification `json:"notification,omitempty"`
	Diff         *diffMessage          `json:"diff,omitempty"`
	Positions    graph.Positions       `json:"positions,omitempty"`
}

type diffMessage struct {
	State  string `json:"state"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Patch  string `json:"patch,omitempty"`
}

// hub is the rendering surface and notifier of one tab. It broadcasts to
// every connected client and remembers the latest nodes and edges so late
// joiners start from the current picture.
type hub struct {
	log *log.Logger

	mu        sync.Mutex
	clients   map[*client]struct{}
	lastNodes []byte
	lastEdges []byte
	closed    bool
}

func newHub(logger *log.Logger) *hub {
	return &hub{log: logger, clients: make(map[*client]struct{})}
}

// SetNodes implements session.Surface.
func (h *hub) SetNodes(nodes []graph.Node) {
	data := h.encode(message{Type: msgNodes, Nodes: nodes})
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastNodes = data
	h.broadcastLocked(data)
}

// SetEdges implements session.Surface.
func (h *hub) SetEdges(edges []graph.Edge) {
	data := h.encode(message{Type: msgEdges, Edges: edges})
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEdges = data
	h.broadcastLocked(data)
}

// Notify implements session.Notifier.
func (h *hub) Notify(n session.Notification) {
	h.broadcast(message{Type: msgNotification, Notification: &n})
}

func (h *hub) broadcast(m message) {
	data := h.encode(m)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(data)
}

func (h *hub) broadcastLocked(data []byte) {
	if data == nil {
		return
	}
	for c := range h.clients {
		if !c.enqueue(data) {
			// A client that cannot keep up is dropped rather than
			// stalling the session.
			h.log.Warn("dropping slow websocket client")
			delete(h.clients, c)
			c.closeSend()
		}
	}
}

func (h *hub) encode(m message) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		h.log.Error("encode websocket message", "type", m.Type, "err", err)
		return nil
	}
	return data
}

// join registers c and queues the current nodes and edges for it.
func (h *hub) join(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.lastNodes != nil {
		c.enqueue(h.lastNodes)
	}
	if h.lastEdges != nil {
		c.enqueue(h.lastEdges)
	}
	return true
}

func (h *hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.closeSend()
	}
}

func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.closeSend()
	}
	h.clients = make(map[*client]struct{})
}

// client is one WebSocket connection. Writes happen only in writePump.
type client struct {
	conn *websocket.Conn
	// dragging is owned by the read loop.
	dragging bool

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBuffer)}
}

// enqueue queues data without blocking. It reports false when the buffer
// is full; data for a closed client is discarded.
func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func diffStateMessage(state diffpointer.State, source string) message {
	return message{Type: msgDiff, Diff: &diffMessage{State: state.String(), Source: source}}
}

func diffResultMessage(sel diffpointer.Selection) message {
	return message{Type: msgDiff, Diff: &diffMessage{
		State:  diffpointer.Idle.String(),
		Source: sel.Source,
		Target: sel.Target,
		Patch:  sel.Patch,
	}}
}
