package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-gameportal/internal/database"
	"github.com/npezzotti/go-gameportal/internal/types"
)

// Notification types.
const (
	TypeWelcome        = "welcome"
	TypeMessage        = "message"
	TypeFriendRequest  = "friend_request"
	TypeFriendAccepted = "friend_accepted"
	TypeServer         = "server"
)

// Publisher receives every notification after it is stored.
type Publisher interface {
	PublishNotification(n types.Notification)
}

// Inbox is the persisted notification list, newest first.
type Inbox struct {
	log       *log.Logger
	store     database.DocumentStore
	publisher Publisher
	now       func() time.Time
	mu        sync.Mutex
}

func NewInbox(logger *log.Logger, store database.DocumentStore) *Inbox {
	return &Inbox{
		log:   logger,
		store: store,
		now:   time.Now,
	}
}

// SetPublisher attaches the realtime fan-out.
func (in *Inbox) SetPublisher(p Publisher) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.publisher = p
}

// Push prepends n, assigning an id and marking it unread. A zero
// timestamp is replaced with the current time.
func (in *Inbox) Push(ctx context.Context, n types.Notification) (types.Notification, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	n.Id = uuid.NewString()
	n.Read = false
	if n.Timestamp.IsZero() {
		n.Timestamp = in.now()
	}

	list, err := in.load(ctx)
	if err != nil {
		return types.Notification{}, err
	}

	list = append([]types.Notification{n}, list...)
	if err := database.PutJSON(ctx, in.store, database.KeyNotifications, list); err != nil {
		return types.Notification{}, err
	}

	if in.publisher != nil {
		in.publisher.PublishNotification(n)
	}

	return n, nil
}

func (in *Inbox) List(ctx context.Context) ([]types.Notification, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.load(ctx)
}

// MarkRead marks the notification with id read, or every notification
// when id is empty.
func (in *Inbox) MarkRead(ctx context.Context, id string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	list, err := in.load(ctx)
	if err != nil {
		return err
	}

	found := id == ""
	for i := range list {
		if id == "" || list[i].Id == id {
			list[i].Read = true
			found = true
		}
	}
	if !found {
		return ErrNotificationNotFound
	}

	return database.PutJSON(ctx, in.store, database.KeyNotifications, list)
}

func (in *Inbox) UnreadCount(ctx context.Context) (int, error) {
	list, err := in.List(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n, nil
}

func (in *Inbox) load(ctx context.Context) ([]types.Notification, error) {
	var list []types.Notification
	if _, err := database.GetJSON(ctx, in.store, database.KeyNotifications, &list); err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	return list, nil
}

var (
	ErrNotificationNotFound = types.NewUserError(types.SeverityError, "Notification not found")
	ErrContactFields        = types.NewUserError(types.SeverityError, "Please fill in all fields")
)

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ContactLog records messages addressed to the site owner.
type ContactLog struct {
	log   *log.Logger
	store database.DocumentStore
	owner string
	brand string
	now   func() time.Time
	mu    sync.Mutex
}

func NewContactLog(logger *log.Logger, store database.DocumentStore, ownerEmail, brand string) *ContactLog {
	return &ContactLog{
		log:   logger,
		store: store,
		owner: ownerEmail,
		brand: brand,
		now:   time.Now,
	}
}

func (cl *ContactLog) Send(ctx context.Context, req ContactRequest) (types.ContactMessage, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" ||
		strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Message) == "" {
		return types.ContactMessage{}, ErrContactFields
	}

	msg := types.ContactMessage{
		To:        cl.owner,
		From:      req.Email,
		Subject:   fmt.Sprintf("%s Contact: %s", cl.brand, req.Subject),
		Message:   fmt.Sprintf("From: %s (%s)\n\n%s", req.Name, req.Email, req.Message),
		Timestamp: cl.now(),
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	var list []types.ContactMessage
	if _, err := database.GetJSON(ctx, cl.store, database.KeyContactMessages, &list); err != nil {
		return types.ContactMessage{}, fmt.Errorf("load contact messages: %w", err)
	}

	list = append(list, msg)
	if err := database.PutJSON(ctx, cl.store, database.KeyContactMessages, list); err != nil {
		return types.ContactMessage{}, err
	}

	cl.log.Printf("contact message from %s recorded for %s", req.Email, cl.owner)
	return msg, nil
}

func (cl *ContactLog) List(ctx context.Context) ([]types.ContactMessage, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	var list []types.ContactMessage
	if _, err := database.GetJSON(ctx, cl.store, database.KeyContactMessages, &list); err != nil {
		return nil, fmt.Errorf("load contact messages: %w", err)
	}
	return list, nil
}
