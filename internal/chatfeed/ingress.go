package chatfeed

import (
	"strconv"
	"strings"

	"github.com/park285/Cheese-ChessVote/internal/domain"
)

// ToVoteEvent maps a chat frame to a vote candidate. ok is false for frames that are
// not user chat (joins, system notices) or have no sender.
func ToVoteEvent(msg *Message) (domain.VoteEvent, bool) {
	if msg == nil {
		return domain.VoteEvent{}, false
	}
	if t := strings.ToLower(strings.TrimSpace(msg.Type)); t != "" && t != "message" && t != "chat" {
		return domain.VoteEvent{}, false
	}
	name := ""
	if msg.Sender != nil {
		name = strings.TrimSpace(*msg.Sender)
	}
	if name == "" {
		name = strings.TrimSpace(msg.SenderID)
	}
	if name == "" || strings.TrimSpace(msg.Msg) == "" {
		return domain.VoteEvent{}, false
	}

	roles := domain.RoleFlags{IsFollower: msg.Follower, IsChannelOwner: msg.Owner}
	for _, b := range msg.Badges {
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "subscriber", "founder", "sub":
			roles.IsSubscriber = true
		case "moderator", "mod":
			roles.IsModerator = true
		case "vip":
			roles.IsVIP = true
		case "broadcaster", "owner":
			roles.IsBroadcaster = true
			roles.IsChannelOwner = true
		case "follower":
			roles.IsFollower = true
		}
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(msg.SenderID), 10, 64); err == nil {
		roles.NumericID = &n
	}
	return domain.VoteEvent{
		Voter:         domain.Voter{ID: name, Roles: roles},
		RawText:       msg.Msg,
		SourceChannel: domain.ChannelName(msg.Room),
	}, true
}
