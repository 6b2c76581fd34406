package types

import (
	"time"
)

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyFriends Privacy = "friends"
	PrivacyPrivate Privacy = "private"
)

type Avatar struct {
	Head        string   `json:"head"`
	Torso       string   `json:"torso"`
	Legs        string   `json:"legs"`
	Accessories []string `json:"accessories"`
}

type Settings struct {
	Theme         string  `json:"theme"`
	Notifications bool    `json:"notifications"`
	Privacy       Privacy `json:"privacy"`
}

type Account struct {
	Id            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	PasswordHash  string    `json:"password,omitempty"`
	Birthday      string    `json:"birthday,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	LastLogin     time.Time `json:"lastLogin,omitempty"`
	IsVerified    bool      `json:"isVerified"`
	IsGuest       bool      `json:"isGuest,omitempty"`
	Level         int       `json:"level"`
	Experience    int       `json:"experience"`
	Coins         int       `json:"coins"`
	Gems          int       `json:"gems"`
	Friends       []string  `json:"friends"`
	Inventory     []string  `json:"inventory"`
	Avatar        Avatar    `json:"avatar"`
	Servers       []string  `json:"servers"`
	Settings      Settings  `json:"settings"`
	CurrentServer string    `json:"currentServer,omitempty"`
}

// Public returns a copy of the account that is safe to hand to clients.
func (a Account) Public() Account {
	a.PasswordHash = ""
	return a
}

type Session struct {
	UserId    string `json:"userId"`
	Token     string `json:"token"`
	Expires   int64  `json:"expires"`
	IsGuest   bool   `json:"isGuest"`
	GuestName string `json:"guestName,omitempty"`
}

// Valid reports whether the session expires strictly after now.
func (s Session) Valid(now time.Time) bool {
	return s.Expires > now.UnixMilli()
}

func (s Session) ExpiresAt() time.Time {
	return time.UnixMilli(s.Expires)
}

type Message struct {
	Id            string    `json:"id"`
	Sender        string    `json:"sender"`
	Avatar        string    `json:"avatar"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
	IsCurrentUser bool      `json:"isCurrentUser"`
}

type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceInGame  Presence = "ingame"
	PresenceOffline Presence = "offline"
)

type Friend struct {
	Id       string   `json:"id"`
	Username string   `json:"username"`
	Avatar   string   `json:"avatar"`
	Status   Presence `json:"status"`
	LastSeen string   `json:"lastSeen"`
	Game     string   `json:"game,omitempty"`
}

type DirectoryUser struct {
	Username string   `json:"username"`
	Status   Presence `json:"status"`
	Avatar   string   `json:"avatar"`
}

type ServerStatus string

const (
	ServerOnline      ServerStatus = "online"
	ServerMaintenance ServerStatus = "maintenance"
)

type Server struct {
	Id          string       `json:"id"`
	Name        string       `json:"name"`
	Region      string       `json:"region"`
	Players     int          `json:"players"`
	MaxPlayers  int          `json:"maxPlayers"`
	Ping        int          `json:"ping"`
	Game        string       `json:"game"`
	Status      ServerStatus `json:"status"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

type Notification struct {
	Id        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

type ContactMessage struct {
	To        string    `json:"to"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
