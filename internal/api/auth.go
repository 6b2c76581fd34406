package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/npezzotti/go-gameportal/internal/accounts"
	"github.com/npezzotti/go-gameportal/internal/types"
)

const tokenCookieKey = "token"

type contextKey string

const accountKey contextKey = "account"

func WithAccount(ctx context.Context, account types.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

func AccountFromContext(ctx context.Context) (types.Account, bool) {
	account, ok := ctx.Value(accountKey).(types.Account)

	return account, ok
}

type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type GuestRequest struct {
	Name string `json:"name"`
}

type PasswordRequest struct {
	Password string `json:"password"`
}

type SessionResponse struct {
	User    types.Account `json:"user"`
	Expires time.Time     `json:"expires"`
	IsGuest bool          `json:"isGuest"`
}

type AccountResponse struct {
	User     types.Account   `json:"user"`
	Sessions []types.Session `json:"sessions"`
}

type UsernameResponse struct {
	Username  string `json:"username"`
	Checked   bool   `json:"checked"`
	Available bool   `json:"available"`
}

func createTokenCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredTokenCookie() *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *PortalApp) writeSession(w http.ResponseWriter, status int, account types.Account, session types.Session) {
	http.SetCookie(w, createTokenCookie(session.Token, session.ExpiresAt()))
	s.writeJson(w, status, SessionResponse{
		User:    account.Public(),
		Expires: session.ExpiresAt().UTC(),
		IsGuest: session.IsGuest,
	})
}

func (s *PortalApp) register(w http.ResponseWriter, r *http.Request) {
	var req accounts.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, session, err := s.accounts.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeSession(w, http.StatusCreated, account, session)
}

func (s *PortalApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, session, err := s.accounts.Login(r.Context(), lr.Username, lr.Password, lr.RememberMe)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeSession(w, http.StatusOK, account, session)
}

func (s *PortalApp) guest(w http.ResponseWriter, r *http.Request) {
	var gr GuestRequest
	if err := decodeOptional(r, &gr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, session, err := s.accounts.LoginAsGuest(r.Context(), gr.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeSession(w, http.StatusOK, account, session)
}

func (s *PortalApp) session(w http.ResponseWriter, r *http.Request) {
	account, session, ok := s.accounts.Current()
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, SessionResponse{
		User:    account.Public(),
		Expires: session.ExpiresAt().UTC(),
		IsGuest: session.IsGuest,
	})
}

func (s *PortalApp) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Logout(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}

	http.SetCookie(w, expiredTokenCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (s *PortalApp) usernameAvailable(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	checked, available, err := s.accounts.UsernameAvailable(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, UsernameResponse{
		Username:  name,
		Checked:   checked,
		Available: available,
	})
}

func (s *PortalApp) passwordStrength(w http.ResponseWriter, r *http.Request) {
	var pr PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&pr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, accounts.PasswordStrength(pr.Password))
}

func (s *PortalApp) account(w http.ResponseWriter, r *http.Request) {
	current, ok := AccountFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.accounts.Account(r.Context(), current.Id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var history []types.Session
	if !account.IsGuest {
		history, err = s.accounts.SessionHistory(r.Context(), account.Id)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	s.writeJson(w, http.StatusOK, AccountResponse{
		User:     account.Public(),
		Sessions: redactTokens(history),
	})
}

func redactTokens(history []types.Session) []types.Session {
	out := make([]types.Session, len(history))
	for i, sess := range history {
		sess.Token = ""
		out[i] = sess
	}
	return out
}
