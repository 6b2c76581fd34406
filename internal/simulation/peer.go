package simulation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-gameportal/internal/types"
)

const (
	ReplyDelay       = time.Second
	ChatterMin       = 30 * time.Second
	ChatterMax       = 60 * time.Second
	ChatterChance    = 0.3
	FriendRequestMin = 5 * time.Second
	FriendRequestMax = 10 * time.Second
	AcceptChance     = 0.7
)

// SimulatedPeer stands in for the remote side of friend chat: it answers
// messages, chats unprompted and decides friend requests.
type SimulatedPeer struct {
	rnd Random
	now func() time.Time
}

func NewSimulatedPeer(rnd Random) *SimulatedPeer {
	return &SimulatedPeer{rnd: rnd, now: time.Now}
}

func (p *SimulatedPeer) ReplyDelay() time.Duration {
	return ReplyDelay
}

// Reply picks a random friend and phrase. It reports false when there is
// nobody to answer.
func (p *SimulatedPeer) Reply(friends []types.Friend) (types.Message, bool) {
	if len(friends) == 0 {
		return types.Message{}, false
	}

	friend := friends[p.rnd.Intn(len(friends))]
	avatar := friend.Avatar
	if avatar == "" {
		avatar = FriendAvatar
	}

	return types.Message{
		Id:        "msg_" + uuid.NewString(),
		Sender:    friend.Username,
		Avatar:    avatar,
		Message:   replyPhrases[p.rnd.Intn(len(replyPhrases))],
		Timestamp: p.now(),
	}, true
}

func (p *SimulatedPeer) ChatterInterval() time.Duration {
	return Between(p.rnd, ChatterMin, ChatterMax)
}

// Chatter fires with ChatterChance and otherwise stays quiet.
func (p *SimulatedPeer) Chatter(friends []types.Friend) (types.Message, bool) {
	if p.rnd.Float64() >= ChatterChance {
		return types.Message{}, false
	}
	return p.Reply(friends)
}

func (p *SimulatedPeer) FriendRequestDelay() time.Duration {
	return Between(p.rnd, FriendRequestMin, FriendRequestMax)
}

// AnswerFriendRequest returns the new friend when the request is accepted.
// A rejected request has no distinct outcome.
func (p *SimulatedPeer) AnswerFriendRequest(username string) (types.Friend, bool) {
	if p.rnd.Float64() >= AcceptChance {
		return types.Friend{}, false
	}

	return types.Friend{
		Id:       fmt.Sprintf("friend_%d", p.now().UnixMilli()),
		Username: username,
		Avatar:   FriendAvatar,
		Status:   types.PresenceOnline,
		LastSeen: "Now",
	}, true
}
