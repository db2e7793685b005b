package domain

import "strings"

// GameMode selects how voters map to teams.
type GameMode string

const (
	ModeNormal           GameMode = "normal"
	ModeSoloVsChat       GameMode = "soloVsChat"
	ModeOneVsOne         GameMode = "oneVsOne"
	ModeViewersVsViewers GameMode = "viewersVsViewers"
	ModeChatVsChat       GameMode = "chatVsChat"
)

// ParseGameMode is lenient about case and separators ("solo-vs-chat", "1v1").
func ParseGameMode(s string) (GameMode, bool) {
	key := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.TrimSpace(s)))
	switch key {
	case "", "normal", "freeforall", "ffa":
		return ModeNormal, true
	case "solovschat", "1vviewers", "solo":
		return ModeSoloVsChat, true
	case "onevsone", "1v1", "1vs1":
		return ModeOneVsOne, true
	case "viewersvsviewers", "viewersvviewers", "teams":
		return ModeViewersVsViewers, true
	case "chatvschat", "streamervstreamer", "streamervsstreamer", "relay":
		return ModeChatVsChat, true
	default:
		return ModeNormal, false
	}
}

// TwoParty reports whether the mode restricts voting to the side to move.
func (m GameMode) TwoParty() bool { return m != ModeNormal && m != "" }

// RoleFlags are the chat roles attached to a message by the transport.
type RoleFlags struct {
	IsFollower     bool   `json:"is_follower"`
	IsSubscriber   bool   `json:"is_subscriber"`
	IsModerator    bool   `json:"is_moderator"`
	IsVIP          bool   `json:"is_vip"`
	IsBroadcaster  bool   `json:"is_broadcaster"`
	IsChannelOwner bool   `json:"is_channel_owner"`
	NumericID      *int64 `json:"numeric_id,omitempty"`
}

// Voter is a chat participant. ID is the chat username.
type Voter struct {
	ID    string    `json:"id"`
	Roles RoleFlags `json:"roles"`
}

// VoteEvent is one inbound chat message that may carry a vote.
type VoteEvent struct {
	Voter         Voter  `json:"voter"`
	RawText       string `json:"raw_text"`
	SourceChannel string `json:"source_channel"`
}

// SameUser compares chat usernames the way chat platforms do.
func SameUser(a, b string) bool {
	a = strings.TrimPrefix(strings.TrimSpace(a), "@")
	b = strings.TrimPrefix(strings.TrimSpace(b), "@")
	return a != "" && strings.EqualFold(a, b)
}

// ChannelName strips the leading '#' used by IRC-style channel names.
func ChannelName(ch string) string {
	return strings.TrimPrefix(strings.TrimSpace(ch), "#")
}
