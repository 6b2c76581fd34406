package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-gameportal/internal/notify"
	"github.com/npezzotti/go-gameportal/internal/server"
	"github.com/npezzotti/go-gameportal/internal/types"
)

const healthTimeout = 2 * time.Second

type PostMessageRequest struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type FriendRequest struct {
	Username string `json:"username"`
}

type ReadRequest struct {
	Id string `json:"id"`
}

type UnreadResponse struct {
	Messages      int `json:"messages"`
	Notifications int `json:"notifications"`
}

type NotificationsResponse struct {
	Notifications []types.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

func (s *PortalApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// writeError logs infrastructure failures and writes the mapped response.
func (s *PortalApp) writeError(w http.ResponseWriter, err error) {
	errResp := errorFromService(err)
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Printf("request failed: %v", err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

// decodeOptional decodes a JSON body into v. An empty body, chunked or
// not, leaves v untouched.
func decodeOptional(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *PortalApp) getMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chat.Messages(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, msgs)
}

func (s *PortalApp) postMessage(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.chat.PostMessage(r.Context(), req.Tag, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// blank messages are dropped silently
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *PortalApp) unread(w http.ResponseWriter, r *http.Request) {
	n, err := s.inbox.UnreadCount(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, UnreadResponse{
		Messages:      s.chat.Unread(),
		Notifications: n,
	})
}

func (s *PortalApp) markChatRead(w http.ResponseWriter, _ *http.Request) {
	s.chat.MarkRead()
	w.WriteHeader(http.StatusNoContent)
}

func (s *PortalApp) getFriends(w http.ResponseWriter, r *http.Request) {
	var (
		friends []types.Friend
		err     error
	)
	if r.URL.Query().Get("online") == "true" {
		friends, err = s.chat.OnlineFriends(r.Context())
	} else {
		friends, err = s.chat.Friends(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, friends)
}

func (s *PortalApp) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req FriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.chat.SendFriendRequest(r.Context(), req.Username); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *PortalApp) searchUsers(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, s.chat.SearchUsers(r.URL.Query().Get("q")))
}

func (s *PortalApp) listServers(w http.ResponseWriter, r *http.Request) {
	list, err := s.servers.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, list)
}

func (s *PortalApp) refreshServers(w http.ResponseWriter, r *http.Request) {
	list, err := s.servers.Refresh(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, list)
}

func (s *PortalApp) joinServer(w http.ResponseWriter, r *http.Request) {
	joined, err := s.servers.Join(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, joined)
}

func (s *PortalApp) getNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.inbox.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}

	s.writeJson(w, http.StatusOK, NotificationsResponse{
		Notifications: list,
		Unread:        unread,
	})
}

// markNotificationsRead marks one notification read, or all of them when
// no id is given.
func (s *PortalApp) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var req ReadRequest
	if err := decodeOptional(r, &req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.inbox.MarkRead(r.Context(), req.Id); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *PortalApp) sendContact(w http.ResponseWriter, r *http.Request) {
	var req notify.ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.contact.Send(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *PortalApp) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.Printf("health check: %v", err)
		errResp := NewServiceUnavailableError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *PortalApp) serveWs(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(account, conn, s.hub, s.log)

	s.hub.RegisterClient(client)
	go client.Write()
	go client.Read()
}
