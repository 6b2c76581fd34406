package simulation

import (
	"time"

	"github.com/npezzotti/go-gameportal/internal/types"
)

const (
	FriendAvatar = "https://cdn-icons-png.flaticon.com/512/4333/4333609.png"
	PlayerAvatar = "https://cdn-icons-png.flaticon.com/512/3135/3135715.png"
)

// SeedFriends is the friends list a fresh profile starts with.
func SeedFriends() []types.Friend {
	return []types.Friend{
		{Id: "friend1", Username: "CoolPlayer123", Avatar: FriendAvatar, Status: types.PresenceOnline, LastSeen: "Now", Game: "Obby Adventure"},
		{Id: "friend2", Username: "ProBuilder", Avatar: FriendAvatar, Status: types.PresenceInGame, LastSeen: "2 min ago", Game: "Building Simulator"},
		{Id: "friend3", Username: "ChatMaster", Avatar: FriendAvatar, Status: types.PresenceOnline, LastSeen: "Now"},
	}
}

// SeedMessages is the starter conversation shown in an empty friends chat.
func SeedMessages(now time.Time) []types.Message {
	return []types.Message{
		{
			Id:        "msg1",
			Sender:    "CoolPlayer123",
			Avatar:    FriendAvatar,
			Message:   "Hey! Want to play Obby Adventure together?",
			Timestamp: now.Add(-3600 * time.Second),
		},
		{
			Id:            "msg2",
			Sender:        "You",
			Avatar:        PlayerAvatar,
			Message:       "Sure! I'll join your server.",
			Timestamp:     now.Add(-3500 * time.Second),
			IsCurrentUser: true,
		},
		{
			Id:        "msg3",
			Sender:    "CoolPlayer123",
			Avatar:    FriendAvatar,
			Message:   `Great! I'm in server "Obby Fun"`,
			Timestamp: now.Add(-3400 * time.Second),
		},
	}
}

// Directory is the fixed set of users that search runs over.
func Directory() []types.DirectoryUser {
	return []types.DirectoryUser{
		{Username: "CoolPlayer123", Status: types.PresenceOnline, Avatar: FriendAvatar},
		{Username: "ProBuilder", Status: types.PresenceInGame, Avatar: FriendAvatar},
		{Username: "ChatMaster", Status: types.PresenceOnline, Avatar: FriendAvatar},
		{Username: "GameDev2023", Status: types.PresenceOffline, Avatar: FriendAvatar},
	}
}

var replyPhrases = []string{
	"Nice! Want to team up?",
	"I'm in the same game!",
	"Check out my new avatar!",
	"Join my server!",
	"Let's play together!",
}

var (
	serverNames = []string{
		"Obby Fun", "Tycoon City", "Roleplay World", "Adventure Land",
		"Building Hub", "Racing Central", "Fight Club", "Parkour Paradise",
		"Survival Island", "Creative Space", "Party Zone", "Mini Games",
	}
	regions = []string{"US West", "US East", "Europe", "Asia", "Australia"}
)
