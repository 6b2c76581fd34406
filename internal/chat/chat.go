package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/npezzotti/go-gameportal/internal/database"
	"github.com/npezzotti/go-gameportal/internal/notify"
	"github.com/npezzotti/go-gameportal/internal/simulation"
	"github.com/npezzotti/go-gameportal/internal/stats"
	"github.com/npezzotti/go-gameportal/internal/types"
)

// DefaultTag is the group conversation shared with all friends.
const DefaultTag = "friends"

const minQueryLength = 2

var ErrMissingUsername = types.NewUserError(types.SeverityError, "Please enter a username")

// Peer produces the traffic of the other side of a conversation.
type Peer interface {
	ReplyDelay() time.Duration
	Reply(friends []types.Friend) (types.Message, bool)
	ChatterInterval() time.Duration
	Chatter(friends []types.Friend) (types.Message, bool)
	FriendRequestDelay() time.Duration
	AnswerFriendRequest(username string) (types.Friend, bool)
}

// SessionSource exposes the active account.
type SessionSource interface {
	Current() (types.Account, types.Session, bool)
}

type Notifier interface {
	Push(ctx context.Context, n types.Notification) (types.Notification, error)
}

// Publisher fans chat events out to connected clients.
type Publisher interface {
	PublishMessage(tag string, m types.Message)
	PublishFriend(f types.Friend)
}

type Service struct {
	log       *log.Logger
	store     database.DocumentStore
	peer      Peer
	sessions  SessionSource
	notifier  Notifier
	scheduler simulation.Scheduler
	stats     stats.StatsProvider
	now       func() time.Time

	mu        sync.Mutex
	publisher Publisher
	unread    int
}

func NewService(logger *log.Logger, store database.DocumentStore, peer Peer, sessions SessionSource, notifier Notifier, scheduler simulation.Scheduler, st stats.StatsProvider) *Service {
	st.RegisterMetric(stats.NumMessagesPosted)
	st.RegisterMetric(stats.NumFriendRequests)

	return &Service{
		log:       logger,
		store:     store,
		peer:      peer,
		sessions:  sessions,
		notifier:  notifier,
		scheduler: scheduler,
		stats:     st,
		now:       time.Now,
	}
}

func (s *Service) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// PostMessage appends body to the conversation tag as the active account.
// It returns nil without error when body is blank or nobody is logged in.
func (s *Service) PostMessage(ctx context.Context, tag, body string) (*types.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}

	account, _, ok := s.sessions.Current()
	if !ok {
		return nil, nil
	}

	if tag == "" {
		tag = DefaultTag
	}

	msg := types.Message{
		Id:            "msg_" + uuid.NewString(),
		Sender:        account.Username,
		Avatar:        simulation.PlayerAvatar,
		Message:       body,
		Timestamp:     s.now(),
		IsCurrentUser: true,
	}

	s.mu.Lock()
	err := s.appendMessage(ctx, tag, msg)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.stats.Incr(stats.NumMessagesPosted)

	if tag == DefaultTag {
		s.scheduler.AfterFunc(s.peer.ReplyDelay(), func() {
			if err := s.deliverSynthetic(context.Background(), s.peer.Reply); err != nil {
				s.log.Printf("synthetic reply: %v", err)
			}
		})
	}

	return &msg, nil
}

// Messages returns the conversation tag. An empty default conversation is
// seeded with starter messages.
func (s *Service) Messages(ctx context.Context, tag string) ([]types.Message, error) {
	if tag == "" {
		tag = DefaultTag
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, err := s.loadConversations(ctx)
	if err != nil {
		return nil, err
	}

	msgs := conversations[tag]
	if tag == DefaultTag && len(msgs) == 0 {
		msgs = simulation.SeedMessages(s.now())
		conversations[tag] = msgs
		if err := database.PutJSON(ctx, s.store, database.KeyChatMessages, conversations); err != nil {
			return nil, err
		}
	}

	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Friends returns the friends list, seeding it on first use.
func (s *Service) Friends(ctx context.Context) ([]types.Friend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFriends(ctx)
}

// OnlineFriends lists friends that are online or in a game.
func (s *Service) OnlineFriends(ctx context.Context) ([]types.Friend, error) {
	friends, err := s.Friends(ctx)
	if err != nil {
		return nil, err
	}

	online := make([]types.Friend, 0, len(friends))
	for _, f := range friends {
		if f.Status == types.PresenceOnline || f.Status == types.PresenceInGame {
			online = append(online, f)
		}
	}
	return online, nil
}

// SearchUsers filters the user directory by a case-insensitive substring.
// Queries shorter than two characters match nothing.
func (s *Service) SearchUsers(query string) []types.DirectoryUser {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryLength {
		return []types.DirectoryUser{}
	}

	q := strings.ToLower(query)
	results := []types.DirectoryUser{}
	for _, u := range simulation.Directory() {
		if strings.Contains(strings.ToLower(u.Username), q) {
			results = append(results, u)
		}
	}
	return results
}

// SendFriendRequest notifies immediately and lets the peer answer after a
// delay. An unanswered request produces nothing further.
func (s *Service) SendFriendRequest(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrMissingUsername
	}

	s.notify(ctx, types.Notification{
		Type:    notify.TypeFriendRequest,
		Title:   "Friend Request Sent",
		Message: fmt.Sprintf("Friend request sent to %s", username),
	})
	s.stats.Incr(stats.NumFriendRequests)

	s.scheduler.AfterFunc(s.peer.FriendRequestDelay(), func() {
		friend, ok := s.peer.AnswerFriendRequest(username)
		if !ok {
			s.log.Printf("friend request to %q went unanswered", username)
			return
		}
		if err := s.addFriend(context.Background(), friend); err != nil {
			s.log.Printf("add friend %q: %v", username, err)
		}
	})

	return nil
}

func (s *Service) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *Service) MarkRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread = 0
}

// Run injects unsolicited messages until ctx is cancelled. The interval is
// drawn again for every cycle.
func (s *Service) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(s.peer.ChatterInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Println("chat simulation stopped")
			return
		case <-timer.C:
			if err := s.deliverSynthetic(ctx, s.peer.Chatter); err != nil {
				s.log.Printf("synthetic chatter: %v", err)
			}
		}
	}
}

func (s *Service) deliverSynthetic(ctx context.Context, produce func([]types.Friend) (types.Message, bool)) error {
	s.mu.Lock()
	friends, err := s.loadFriends(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	msg, ok := produce(friends)
	if !ok {
		s.mu.Unlock()
		return nil
	}

	if err := s.appendMessage(ctx, DefaultTag, msg); err != nil {
		s.mu.Unlock()
		return err
	}
	s.unread++
	s.mu.Unlock()

	s.notify(ctx, types.Notification{
		Type:    notify.TypeMessage,
		Title:   fmt.Sprintf("Message from %s", msg.Sender),
		Message: msg.Message,
	})
	return nil
}

func (s *Service) addFriend(ctx context.Context, friend types.Friend) error {
	s.mu.Lock()
	friends, err := s.loadFriends(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	friends = append(friends, friend)
	if err := database.PutJSON(ctx, s.store, database.KeyFriends, friends); err != nil {
		s.mu.Unlock()
		return err
	}
	publisher := s.publisher
	s.mu.Unlock()

	if publisher != nil {
		publisher.PublishFriend(friend)
	}

	s.notify(ctx, types.Notification{
		Type:    notify.TypeFriendAccepted,
		Title:   "Friend Request Accepted",
		Message: fmt.Sprintf("%s accepted your friend request!", friend.Username),
	})
	return nil
}

// appendMessage must be called with s.mu held.
func (s *Service) appendMessage(ctx context.Context, tag string, msg types.Message) error {
	conversations, err := s.loadConversations(ctx)
	if err != nil {
		return err
	}

	conversations[tag] = append(conversations[tag], msg)
	if err := database.PutJSON(ctx, s.store, database.KeyChatMessages, conversations); err != nil {
		return err
	}

	if s.publisher != nil {
		s.publisher.PublishMessage(tag, msg)
	}
	return nil
}

func (s *Service) loadConversations(ctx context.Context) (map[string][]types.Message, error) {
	conversations := make(map[string][]types.Message)
	if _, err := database.GetJSON(ctx, s.store, database.KeyChatMessages, &conversations); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if conversations == nil {
		conversations = make(map[string][]types.Message)
	}
	return conversations, nil
}

func (s *Service) loadFriends(ctx context.Context) ([]types.Friend, error) {
	var friends []types.Friend
	found, err := database.GetJSON(ctx, s.store, database.KeyFriends, &friends)
	if err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}
	if !found {
		friends = simulation.SeedFriends()
		if err := database.PutJSON(ctx, s.store, database.KeyFriends, friends); err != nil {
			return nil, err
		}
	}
	return friends, nil
}

func (s *Service) notify(ctx context.Context, n types.Notification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Push(ctx, n); err != nil {
		s.log.Printf("push notification %q: %v", n.Title, err)
	}
}
