package session

import (
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// Surface is the rendering target of a session. Nodes are always pushed
// before the edges that reference them. Implementations must not block;
// they are called with the session lock held.
type Surface interface {
	SetNodes(nodes []graph.Node)
	SetEdges(edges []graph.Edge)
}

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing message about a failed operation.
type Notification struct {
	Level   Level       `json:"level"`
	Code    errors.Code `json:"code,omitempty"`
	Message string      `json:"message"`
}

// Notifier receives notifications. It may be called from any goroutine.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

type discardSurface struct{}

func (discardSurface) SetNodes([]graph.Node) {}
func (discardSurface) SetEdges([]graph.Edge) {}

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) {}

// notificationFor builds the notification for err.
func notificationFor(level Level, err error) Notification {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return Notification{Level: level, Code: code, Message: errors.UserMessage(err)}
}
