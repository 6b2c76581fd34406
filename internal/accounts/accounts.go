package accounts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
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
	"github.com/teris-io/shortid"
	"golang.org/x/crypto/bcrypt"
)

const (
	SessionLifetime    = 24 * time.Hour
	RememberMeLifetime = 30 * 24 * time.Hour
	GuestLifetime      = 12 * time.Hour

	MinPasswordLength = 8
	MaxPasswordBytes  = 72
	MinAge            = 13
	yearLength        = time.Duration(365.25 * 24 * float64(time.Hour))

	birthdayLayout = "2006-01-02"
	guestIdPrefix  = "guest_"
)

var (
	ErrMissingFields      = types.NewUserError(types.SeverityError, "Please fill in all fields")
	ErrTermsNotAccepted   = types.NewUserError(types.SeverityError, "You must accept the terms of service")
	ErrPasswordMismatch   = types.NewUserError(types.SeverityError, "Passwords do not match")
	ErrPasswordTooShort   = types.NewUserError(types.SeverityError, "Password must be at least 8 characters")
	ErrPasswordTooLong    = types.NewUserError(types.SeverityError, "Password must be at most 72 bytes")
	ErrUsernameTaken      = types.NewUserError(types.SeverityError, "Username already taken")
	ErrEmailTaken         = types.NewUserError(types.SeverityError, "Email already registered")
	ErrInvalidBirthday    = types.NewUserError(types.SeverityError, "Please enter a valid birthday")
	ErrTooYoung           = types.NewUserError(types.SeverityError, "You must be at least 13 years old to register")
	ErrInvalidCredentials = types.NewUserError(types.SeverityError, "Invalid username or password")
	ErrNotLoggedIn        = types.NewUserError(types.SeverityWarning, "You are not logged in")
	ErrAccountNotFound    = types.NewUserError(types.SeverityError, "Account not found")
)

// Notifier stores user-facing notifications.
type Notifier interface {
	Push(ctx context.Context, n types.Notification) (types.Notification, error)
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Birthday        string `json:"birthday"`
	AcceptTerms     bool   `json:"acceptTerms"`
}

// Service owns the account collection and the single current session.
type Service struct {
	log        *log.Logger
	store      database.DocumentStore
	notifier   Notifier
	stats      stats.StatsProvider
	signingKey []byte
	brand      string

	now      func() time.Time
	rnd      simulation.Random
	hashCost int
	newId    func() string

	mu      sync.Mutex
	current *types.Account
	session *types.Session
}

func NewService(logger *log.Logger, store database.DocumentStore, notifier Notifier, st stats.StatsProvider, signingKey []byte, brand string) *Service {
	for _, name := range []string{stats.NumRegistrations, stats.NumLogins, stats.NumGuestLogins, stats.NumFailedLogins} {
		st.RegisterMetric(name)
	}

	return &Service{
		log:        logger,
		store:      store,
		notifier:   notifier,
		stats:      st,
		signingKey: signingKey,
		brand:      brand,
		now:        time.Now,
		rnd:        simulation.NewRandom(),
		hashCost:   bcrypt.DefaultCost,
		newId:      generateId,
	}
}

func generateId() string {
	sid, err := shortid.Generate()
	if err != nil {
		return uuid.NewString()
	}
	return sid
}

// Register validates req and creates the account. On success the new
// account becomes the current session. Validation failures leave the
// store untouched.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (types.Account, types.Session, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" ||
		req.ConfirmPassword == "" || req.Birthday == "" {
		return types.Account{}, types.Session{}, ErrMissingFields
	}
	if !req.AcceptTerms {
		return types.Account{}, types.Session{}, ErrTermsNotAccepted
	}
	if req.Password != req.ConfirmPassword {
		return types.Account{}, types.Session{}, ErrPasswordMismatch
	}
	if utf8.RuneCountInString(req.Password) < MinPasswordLength {
		return types.Account{}, types.Session{}, ErrPasswordTooShort
	}
	// bcrypt rejects longer input
	if len(req.Password) > MaxPasswordBytes {
		return types.Account{}, types.Session{}, ErrPasswordTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return types.Account{}, types.Session{}, err
	}

	email := normalizeEmail(req.Email)
	for _, a := range accounts {
		if strings.EqualFold(a.Username, req.Username) {
			return types.Account{}, types.Session{}, ErrUsernameTaken
		}
	}
	for _, a := range accounts {
		if normalizeEmail(a.Email) == email {
			return types.Account{}, types.Session{}, ErrEmailTaken
		}
	}

	now := s.now()
	birth, err := time.Parse(birthdayLayout, req.Birthday)
	if err != nil {
		return types.Account{}, types.Session{}, ErrInvalidBirthday
	}
	if Age(birth, now) < MinAge {
		return types.Account{}, types.Session{}, ErrTooYoung
	}

	pwdHash, err := s.hashPassword(req.Password)
	if err != nil {
		return types.Account{}, types.Session{}, fmt.Errorf("hash password: %w", err)
	}

	account := types.Account{
		Id:           s.newId(),
		Username:     req.Username,
		Email:        email,
		PasswordHash: pwdHash,
		Birthday:     req.Birthday,
		CreatedAt:    now,
		LastLogin:    now,
		Level:        1,
		Coins:        1000,
		Gems:         50,
		Friends:      []string{},
		Inventory:    []string{},
		Avatar:       defaultAvatar(),
		Servers:      []string{},
		Settings: types.Settings{
			Theme:         "dark",
			Notifications: true,
			Privacy:       types.PrivacyFriends,
		},
	}

	session, err := s.newSession(account.Id, false, "", now.Add(SessionLifetime))
	if err != nil {
		return types.Account{}, types.Session{}, err
	}

	accounts = append(accounts, account)
	if err := database.PutJSON(ctx, s.store, database.KeyAccounts, accounts); err != nil {
		return types.Account{}, types.Session{}, err
	}
	if err := s.activate(ctx, account, session); err != nil {
		return types.Account{}, types.Session{}, err
	}

	s.stats.Incr(stats.NumRegistrations)
	s.log.Printf("registered account %q (%s)", account.Username, account.Id)

	if s.notifier != nil {
		_, err := s.notifier.Push(ctx, types.Notification{
			Type:    notify.TypeWelcome,
			Title:   fmt.Sprintf("Welcome to %s!", s.brand),
			Message: "Start exploring games, customizing your avatar, and making friends!",
		})
		if err != nil {
			s.log.Printf("welcome notification: %v", err)
		}
	}

	return account.Public(), session, nil
}

// Login picks the first account whose username (case-insensitive) or
// email matches identifier and whose password matches. Every mismatch
// reports ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, identifier, password string, rememberMe bool) (types.Account, types.Session, error) {
	if identifier == "" || password == "" {
		return types.Account{}, types.Session{}, ErrMissingFields
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return types.Account{}, types.Session{}, err
	}

	idx := -1
	for i, a := range accounts {
		if !strings.EqualFold(a.Username, identifier) && normalizeEmail(a.Email) != normalizeEmail(identifier) {
			continue
		}
		if verifyPassword(a.PasswordHash, password) {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.stats.Incr(stats.NumFailedLogins)
		return types.Account{}, types.Session{}, ErrInvalidCredentials
	}

	now := s.now()
	lifetime := SessionLifetime
	if rememberMe {
		lifetime = RememberMeLifetime
	}

	session, err := s.newSession(accounts[idx].Id, false, "", now.Add(lifetime))
	if err != nil {
		return types.Account{}, types.Session{}, err
	}

	accounts[idx].LastLogin = now
	if err := database.PutJSON(ctx, s.store, database.KeyAccounts, accounts); err != nil {
		return types.Account{}, types.Session{}, err
	}
	if err := s.appendHistory(ctx, session); err != nil {
		return types.Account{}, types.Session{}, err
	}
	if err := s.activate(ctx, accounts[idx], session); err != nil {
		return types.Account{}, types.Session{}, err
	}

	s.stats.Incr(stats.NumLogins)
	s.log.Printf("account %q logged in", accounts[idx].Username)

	return accounts[idx].Public(), session, nil
}

// LoginAsGuest starts a guest session. The guest identity is never
// written to the account collection.
func (s *Service) LoginAsGuest(ctx context.Context, displayName string) (types.Account, types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = fmt.Sprintf("Guest_%d", s.rnd.Intn(10000))
	}

	now := s.now()
	guest := newGuest(guestIdPrefix+s.newId(), name, now)

	session, err := s.newSession(guest.Id, true, name, now.Add(GuestLifetime))
	if err != nil {
		return types.Account{}, types.Session{}, err
	}
	if err := s.activate(ctx, guest, session); err != nil {
		return types.Account{}, types.Session{}, err
	}

	s.stats.Incr(stats.NumGuestLogins)
	s.log.Printf("guest %q started a session", name)

	return guest, session, nil
}

// RestoreSession resumes the persisted current session. It reports false
// when there is nothing to resume; expired or dangling records are
// deleted.
func (s *Service) RestoreSession(ctx context.Context) (types.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var session types.Session
	found, err := database.GetJSON(ctx, s.store, database.KeyCurrentSession, &session)
	if err != nil {
		return types.Account{}, false, err
	}
	if !found {
		return types.Account{}, false, nil
	}

	now := s.now()
	if !session.Valid(now) {
		s.log.Printf("stored session for %s expired at %s", session.UserId, session.ExpiresAt().Format(time.RFC3339))
		return types.Account{}, false, s.clear(ctx)
	}

	var account types.Account
	if session.IsGuest {
		account = newGuest(session.UserId, session.GuestName, now)
	} else {
		accounts, err := s.loadAccounts(ctx)
		if err != nil {
			return types.Account{}, false, err
		}
		idx := indexOf(accounts, session.UserId)
		if idx < 0 {
			s.log.Printf("stored session references unknown account %s", session.UserId)
			return types.Account{}, false, s.clear(ctx)
		}
		account = accounts[idx]
	}

	s.current = &account
	s.session = &session
	return account.Public(), true, nil
}

// Logout clears the current session. The session history is kept.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.log.Printf("%q logged out", s.current.Username)
	}
	return s.clear(ctx)
}

// Current returns the active account and session, if any.
func (s *Service) Current() (types.Account, types.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.session == nil || !s.session.Valid(s.now()) {
		return types.Account{}, types.Session{}, false
	}
	return s.current.Public(), *s.session, true
}

// Authenticate resolves a token presented by a client. Only the token of
// the current, unexpired session is accepted.
func (s *Service) Authenticate(token string) (types.Account, error) {
	// expiry is checked against the session, which keeps milliseconds
	if _, err := s.parseToken(token); err != nil {
		return types.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.session == nil || s.current == nil || s.session.Token != token || !s.session.Valid(now) {
		return types.Account{}, ErrNotLoggedIn
	}

	return s.current.Public(), nil
}

func (s *Service) Account(ctx context.Context, id string) (types.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.Id == id && s.current.IsGuest {
		return *s.current, nil
	}

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return types.Account{}, err
	}
	idx := indexOf(accounts, id)
	if idx < 0 {
		return types.Account{}, ErrAccountNotFound
	}
	return accounts[idx].Public(), nil
}

// SetCurrentServer records serverId on the active account and adds it to
// the account's joined servers.
func (s *Service) SetCurrentServer(ctx context.Context, serverId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNotLoggedIn
	}

	s.current.CurrentServer = serverId
	if !contains(s.current.Servers, serverId) {
		s.current.Servers = append(s.current.Servers, serverId)
	}
	if s.current.IsGuest {
		return nil
	}

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(accounts, s.current.Id)
	if idx < 0 {
		return ErrAccountNotFound
	}
	accounts[idx].CurrentServer = serverId
	if !contains(accounts[idx].Servers, serverId) {
		accounts[idx].Servers = append(accounts[idx].Servers, serverId)
	}

	return database.PutJSON(ctx, s.store, database.KeyAccounts, accounts)
}

// UsernameAvailable reports whether name is free. Names shorter than three
// characters are not checked and report checked=false.
func (s *Service) UsernameAvailable(ctx context.Context, name string) (checked, available bool, err error) {
	if utf8.RuneCountInString(name) < 3 {
		return false, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return false, false, err
	}
	for _, a := range accounts {
		if strings.EqualFold(a.Username, name) {
			return true, false, nil
		}
	}
	return true, true, nil
}

// SessionHistory lists the recorded login sessions of an account.
func (s *Service) SessionHistory(ctx context.Context, userId string) ([]types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadHistory(ctx)
	if err != nil {
		return nil, err
	}
	return history[userId], nil
}

// Age counts whole 365.25-day years between birth and now.
func Age(birth, now time.Time) int {
	return int(math.Floor(float64(now.Sub(birth)) / float64(yearLength)))
}

func (s *Service) newSession(userId string, guest bool, guestName string, expires time.Time) (types.Session, error) {
	token, err := s.createToken(userId, guest, expires)
	if err != nil {
		return types.Session{}, fmt.Errorf("create token: %w", err)
	}

	return types.Session{
		UserId:    userId,
		Token:     token,
		Expires:   expires.UnixMilli(),
		IsGuest:   guest,
		GuestName: guestName,
	}, nil
}

func (s *Service) activate(ctx context.Context, account types.Account, session types.Session) error {
	if err := database.PutJSON(ctx, s.store, database.KeyCurrentSession, session); err != nil {
		return err
	}
	s.current = &account
	s.session = &session
	return nil
}

func (s *Service) clear(ctx context.Context) error {
	s.current = nil
	s.session = nil
	if err := s.store.Delete(ctx, database.KeyCurrentSession); err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("delete current session: %w", err)
	}
	return nil
}

// appendHistory records session in the account's login history. Entries
// are never removed.
func (s *Service) appendHistory(ctx context.Context, session types.Session) error {
	history, err := s.loadHistory(ctx)
	if err != nil {
		return err
	}

	history[session.UserId] = append(history[session.UserId], session)

	return database.PutJSON(ctx, s.store, database.KeySessions, history)
}

func (s *Service) loadHistory(ctx context.Context) (map[string][]types.Session, error) {
	history := make(map[string][]types.Session)
	if _, err := database.GetJSON(ctx, s.store, database.KeySessions, &history); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if history == nil {
		history = make(map[string][]types.Session)
	}
	return history, nil
}

func (s *Service) loadAccounts(ctx context.Context) ([]types.Account, error) {
	var accounts []types.Account
	if _, err := database.GetJSON(ctx, s.store, database.KeyAccounts, &accounts); err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	return accounts, nil
}

func newGuest(id, name string, now time.Time) types.Account {
	return types.Account{
		Id:        id,
		Username:  name,
		IsGuest:   true,
		CreatedAt: now,
		Coins:     500,
		Gems:      10,
		Friends:   []string{},
		Inventory: []string{},
		Avatar:    defaultAvatar(),
		Servers:   []string{},
	}
}

func defaultAvatar() types.Avatar {
	return types.Avatar{
		Head:        "default",
		Torso:       "default",
		Legs:        "default",
		Accessories: []string{},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func indexOf(accounts []types.Account, id string) int {
	for i, a := range accounts {
		if a.Id == id {
			return i
		}
	}
	return -1
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
