package access

import (
	"errors"
	"testing"

	"github.com/park285/Cheese-ChessVote/internal/domain"
)

func voter(id string) domain.Voter { return domain.Voter{ID: id} }

func mustPolicy(t *testing.T, cfg Config) *Policy {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestOneVsOneGating(t *testing.T) {
	p := mustPolicy(t, Config{Mode: domain.ModeOneVsOne, PlayerWhite: "alice", PlayerBlack: "bob"})

	for _, turn := range []domain.Team{domain.TeamWhite, domain.TeamBlack} {
		d := p.CanVote(voter("carol"), "#alice", RoundContext{TurnOwner: turn})
		if d.Allowed || d.Reason != ReasonNotParticipant {
			t.Fatalf("outsider should be denied as non-participant on turn %v: %v", turn, d)
		}
	}
	if d := p.CanVote(voter("Alice"), "#alice", RoundContext{TurnOwner: domain.TeamWhite}); !d.Allowed {
		t.Fatalf("player1 on own turn: %v", d)
	}
	if d := p.CanVote(voter("alice"), "#alice", RoundContext{TurnOwner: domain.TeamBlack}); d.Allowed || d.Reason != ReasonWrongTeam {
		t.Fatalf("player1 on opponent turn: %v", d)
	}
}

func TestSoloVsChat(t *testing.T) {
	p := mustPolicy(t, Config{Mode: domain.ModeSoloVsChat, SoloPlayer: "streamer", SoloTeam: domain.TeamWhite})
	if d := p.CanVote(voter("streamer"), "", RoundContext{TurnOwner: domain.TeamWhite}); !d.Allowed {
		t.Fatalf("solo player on own turn: %v", d)
	}
	if d := p.CanVote(voter("viewer"), "", RoundContext{TurnOwner: domain.TeamWhite}); d.Allowed {
		t.Fatalf("chat on solo turn should be denied")
	}
	if d := p.CanVote(voter("viewer"), "", RoundContext{TurnOwner: domain.TeamBlack}); !d.Allowed {
		t.Fatalf("chat on its turn: %v", d)
	}
}

func TestChatVsChatByChannel(t *testing.T) {
	p := mustPolicy(t, Config{Mode: domain.ModeChatVsChat, ChannelWhite: "#left", ChannelBlack: "right"})
	if d := p.CanVote(voter("x"), "#LEFT", RoundContext{TurnOwner: domain.TeamWhite}); !d.Allowed {
		t.Fatalf("white channel on white turn: %v", d)
	}
	if d := p.CanVote(voter("x"), "#right", RoundContext{TurnOwner: domain.TeamWhite}); d.Reason != ReasonWrongTeam {
		t.Fatalf("black channel on white turn: %v", d)
	}
	if d := p.CanVote(voter("x"), "#elsewhere", RoundContext{TurnOwner: domain.TeamWhite}); d.Reason != ReasonUnknownChannel {
		t.Fatalf("unknown channel: %v", d)
	}
}

func TestViewersVsViewersParity(t *testing.T) {
	p := mustPolicy(t, Config{Mode: domain.ModeViewersVsViewers})
	odd, even := int64(7), int64(10)
	vOdd := domain.Voter{ID: "o", Roles: domain.RoleFlags{NumericID: &odd}}
	vEven := domain.Voter{ID: "e", Roles: domain.RoleFlags{NumericID: &even}}
	if !p.CanVote(vOdd, "", RoundContext{TurnOwner: domain.TeamBlack}).Allowed {
		t.Fatalf("odd id should play black")
	}
	if p.CanVote(vEven, "", RoundContext{TurnOwner: domain.TeamBlack}).Allowed {
		t.Fatalf("even id should not play black")
	}
	if !p.CanVote(voter("noid"), "", RoundContext{TurnOwner: domain.TeamWhite}).Allowed {
		t.Fatalf("missing id defaults to white")
	}
}

func TestGatesAndOwnerOverride(t *testing.T) {
	p := mustPolicy(t, Config{FollowersOnly: true, SubscribersOnly: true})
	rc := RoundContext{}

	if d := p.CanVote(voter("lurker"), "#chan", rc); d.Reason != ReasonNotFollower {
		t.Fatalf("lurker: %v", d)
	}
	follower := domain.Voter{ID: "f", Roles: domain.RoleFlags{IsFollower: true}}
	if d := p.CanVote(follower, "#chan", rc); d.Reason != ReasonNotSubscriber {
		t.Fatalf("follower without sub: %v", d)
	}
	mod := domain.Voter{ID: "m", Roles: domain.RoleFlags{IsModerator: true}}
	if d := p.CanVote(mod, "#chan", rc); !d.Allowed {
		t.Fatalf("moderator: %v", d)
	}
	if d := p.CanVote(voter("Chan"), "#chan", rc); !d.Allowed {
		t.Fatalf("channel owner by name: %v", d)
	}
	flagged := domain.Voter{ID: "z", Roles: domain.RoleFlags{IsChannelOwner: true}}
	if d := p.CanVote(flagged, "#chan", rc); !d.Allowed {
		t.Fatalf("channel owner by flag: %v", d)
	}

	subOnly := mustPolicy(t, Config{SubscribersOnly: true})
	sub := domain.Voter{ID: "s", Roles: domain.RoleFlags{IsSubscriber: true}}
	if !subOnly.CanVote(sub, "#chan", rc).Allowed {
		t.Fatalf("subscriber should pass sub gate")
	}
}

func TestTurnCheckRunsBeforeGates(t *testing.T) {
	p := mustPolicy(t, Config{Mode: domain.ModeOneVsOne, PlayerWhite: "a", PlayerBlack: "b", FollowersOnly: true})
	if d := p.CanVote(voter("c"), "#a", RoundContext{}); d.Reason != ReasonNotParticipant {
		t.Fatalf("expected participant check first: %v", d)
	}
}

func TestMissingParticipantsAreConfigErrors(t *testing.T) {
	cases := []Config{
		{Mode: domain.ModeSoloVsChat},
		{Mode: domain.ModeOneVsOne, PlayerWhite: "a"},
		{Mode: domain.ModeOneVsOne, PlayerWhite: "a", PlayerBlack: "A"},
		{Mode: domain.ModeChatVsChat, ChannelWhite: "#x"},
		{Mode: "chess960"},
	}
	for _, cfg := range cases {
		_, err := New(cfg)
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("%+v: expected ConfigError, got %v", cfg, err)
		}
	}
}
