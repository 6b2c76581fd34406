package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/go-gameportal/internal/types"
)

// Event types pushed to clients.
const (
	EventMessage         = "message"
	EventFriendAdded     = "friend_added"
	EventNotification    = "notification"
	EventServersUpdated  = "servers_updated"
	EventServerConnected = "server_connected"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Publish *Publish `json:"publish,omitempty"`
	Read    *Read    `json:"read,omitempty"`
	client  *Client  `json:"-"`
}

type Publish struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type Read struct{}

type ServerMessage struct {
	BaseMessage
	Response *Response `json:"response,omitempty"`
	Event    *Event    `json:"event,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Severity     string `json:"severity,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Event struct {
	Type         string              `json:"type"`
	Tag          string              `json:"tag,omitempty"`
	Message      *types.Message      `json:"message,omitempty"`
	Friend       *types.Friend       `json:"friend,omitempty"`
	Notification *types.Notification `json:"notification,omitempty"`
	Servers      []types.Server      `json:"servers,omitempty"`
	Server       *types.Server       `json:"server,omitempty"`
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	return errMessage(id, http.StatusBadRequest, "invalid message")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errMessage(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrInternal(id int) *ServerMessage {
	return errMessage(id, http.StatusInternalServerError, "internal server error")
}

// ErrFromError turns a service error into a response. User-facing errors
// keep their text and severity.
func ErrFromError(id int, err error) *ServerMessage {
	var ue *types.UserError
	if errors.As(err, &ue) {
		msg := errMessage(id, http.StatusBadRequest, ue.Message)
		msg.Response.Severity = string(ue.Severity)
		return msg
	}
	return ErrInternal(id)
}

func errMessage(id, code int, text string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        text,
			Severity:     string(types.SeverityError),
		},
	}
}

func eventMessage(e *Event) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Event:       e,
	}
}

func MessageEvent(tag string, m types.Message) *ServerMessage {
	return eventMessage(&Event{Type: EventMessage, Tag: tag, Message: &m})
}

func FriendAddedEvent(f types.Friend) *ServerMessage {
	return eventMessage(&Event{Type: EventFriendAdded, Friend: &f})
}

func NotificationEvent(n types.Notification) *ServerMessage {
	return eventMessage(&Event{Type: EventNotification, Notification: &n})
}

func ServersUpdatedEvent(servers []types.Server) *ServerMessage {
	return eventMessage(&Event{Type: EventServersUpdated, Servers: servers})
}

func ServerConnectedEvent(s types.Server) *ServerMessage {
	return eventMessage(&Event{Type: EventServerConnected, Server: &s})
}
