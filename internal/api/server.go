package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-gameportal/internal/accounts"
	"github.com/npezzotti/go-gameportal/internal/config"
	"github.com/npezzotti/go-gameportal/internal/notify"
	"github.com/npezzotti/go-gameportal/internal/server"
	"github.com/npezzotti/go-gameportal/internal/types"
)

type AccountService interface {
	Register(ctx context.Context, req accounts.RegisterRequest) (types.Account, types.Session, error)
	Login(ctx context.Context, identifier, password string, rememberMe bool) (types.Account, types.Session, error)
	LoginAsGuest(ctx context.Context, displayName string) (types.Account, types.Session, error)
	Logout(ctx context.Context) error
	Current() (types.Account, types.Session, bool)
	Authenticate(token string) (types.Account, error)
	Account(ctx context.Context, id string) (types.Account, error)
	UsernameAvailable(ctx context.Context, name string) (checked, available bool, err error)
	SessionHistory(ctx context.Context, userId string) ([]types.Session, error)
}

type ChatService interface {
	PostMessage(ctx context.Context, tag, body string) (*types.Message, error)
	Messages(ctx context.Context, tag string) ([]types.Message, error)
	Friends(ctx context.Context) ([]types.Friend, error)
	OnlineFriends(ctx context.Context) ([]types.Friend, error)
	SearchUsers(query string) []types.DirectoryUser
	SendFriendRequest(ctx context.Context, username string) error
	Unread() int
	MarkRead()
}

type ServerDirectory interface {
	List(ctx context.Context) ([]types.Server, error)
	Refresh(ctx context.Context) ([]types.Server, error)
	Join(ctx context.Context, serverId string) (types.Server, error)
}

type NotificationInbox interface {
	List(ctx context.Context) ([]types.Notification, error)
	MarkRead(ctx context.Context, id string) error
	UnreadCount(ctx context.Context) (int, error)
}

type ContactSender interface {
	Send(ctx context.Context, req notify.ContactRequest) (types.ContactMessage, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Services groups the domain services exposed over HTTP.
type Services struct {
	Accounts AccountService
	Chat     ChatService
	Servers  ServerDirectory
	Inbox    NotificationInbox
	Contact  ContactSender
	Store    HealthChecker
}

type PortalApp struct {
	log            *log.Logger
	srv            *http.Server
	accounts       AccountService
	chat           ChatService
	servers        ServerDirectory
	inbox          NotificationInbox
	contact        ContactSender
	store          HealthChecker
	hub            *server.Hub
	limiter        *LimiterStore
	allowedOrigins []string
}

func NewPortalApp(mux *http.ServeMux, logger *log.Logger, svc Services, hub *server.Hub, cfg *config.Config) *PortalApp {
	s := &PortalApp{
		log:            logger,
		accounts:       svc.Accounts,
		chat:           svc.Chat,
		servers:        svc.Servers,
		inbox:          svc.Inbox,
		contact:        svc.Contact,
		store:          svc.Store,
		hub:            hub,
		limiter:        NewLimiterStore(cfg.RateLimitRPM, rateLimitBurst),
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", s.rateLimit(s.register))
	mux.HandleFunc("POST /api/auth/login", s.rateLimit(s.login))
	mux.HandleFunc("POST /api/auth/guest", s.rateLimit(s.guest))
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("POST /api/auth/logout", s.logout)
	mux.HandleFunc("GET /api/auth/username", s.usernameAvailable)
	mux.HandleFunc("POST /api/auth/password-strength", s.passwordStrength)
	mux.HandleFunc("GET /api/account", s.authMiddleware(s.account))
	mux.HandleFunc("GET /api/chat/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("POST /api/chat/messages", s.authMiddleware(s.postMessage))
	mux.HandleFunc("GET /api/chat/unread", s.authMiddleware(s.unread))
	mux.HandleFunc("POST /api/chat/read", s.authMiddleware(s.markChatRead))
	mux.HandleFunc("GET /api/friends", s.authMiddleware(s.getFriends))
	mux.HandleFunc("POST /api/friends/requests", s.authMiddleware(s.sendFriendRequest))
	mux.HandleFunc("GET /api/users/search", s.authMiddleware(s.searchUsers))
	mux.HandleFunc("GET /api/servers", s.listServers)
	mux.HandleFunc("POST /api/servers/refresh", s.refreshServers)
	mux.HandleFunc("POST /api/servers/{id}/join", s.authMiddleware(s.joinServer))
	mux.HandleFunc("GET /api/notifications", s.authMiddleware(s.getNotifications))
	mux.HandleFunc("POST /api/notifications/read", s.authMiddleware(s.markNotificationsRead))
	mux.HandleFunc("POST /api/contact", s.rateLimit(s.sendContact))
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = handlers.CombinedLoggingHandler(logger.Writer(), h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *PortalApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *PortalApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	s.limiter.Stop()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
