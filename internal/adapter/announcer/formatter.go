package announcer

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/msgcat"
	"github.com/park285/Cheese-ChessVote/internal/round"
)

const movesListLimit = 40

// Formatter renders controller events into chat lines from the message catalog.
type Formatter struct {
	cat    *msgcat.Catalog
	prefix string
}

func NewFormatter(cat *msgcat.Catalog, prefix string) *Formatter {
	return &Formatter{cat: cat, prefix: strings.TrimSpace(prefix)}
}

func (f *Formatter) Prefix() string { return f.prefix }

// Event returns "" for events that are not announced.
func (f *Formatter) Event(ev round.Event) (string, error) {
	switch ev.Kind {
	case round.EventRoundOpened:
		data := map[string]any{"Round": ev.Round, "Turn": teamName(ev.Turn), "Seconds": seconds(ev.Remaining)}
		switch {
		case ev.Mirror:
			return f.cat.Render("round.mirror", data)
		case ev.Immediate:
			return f.cat.Render("round.open_immediate", data)
		default:
			return f.cat.Render("round.open", data)
		}
	case round.EventPaused:
		return f.cat.Render("round.paused", map[string]any{"Seconds": seconds(ev.Remaining)})
	case round.EventResumed:
		return f.cat.Render("round.resumed", map[string]any{"Seconds": seconds(ev.Remaining)})
	case round.EventWheelSpin:
		n := 0
		if ev.Spin != nil {
			n = len(ev.Spin.Wedges)
		}
		return f.cat.Render("wheel.spin", map[string]any{"Count": n})
	case round.EventMoveApplied:
		switch ev.Source {
		case round.SourcePuzzle:
			return f.cat.Render("move.puzzle", map[string]any{"SAN": ev.Move.SAN})
		case round.SourceRemote:
			return f.cat.Render("move.remote", map[string]any{"SAN": ev.Move.SAN})
		default:
			return f.cat.Render("move.vote", map[string]any{
				"Turn": teamName(ev.Turn.Other()), "SAN": ev.Move.SAN, "Votes": ev.Votes, "Total": ev.Total,
			})
		}
	case round.EventEpisodeEnded:
		return f.Outcome(ev.Outcome, ev.Turn.Other(), ev.Round, ev.Expected)
	case round.EventFault:
		msg := "unknown"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		return f.cat.Render("fault", map[string]any{"Error": msg})
	default:
		return "", nil
	}
}

// Outcome renders the end of an episode. mover is the side that made the last move.
func (f *Formatter) Outcome(o domain.Outcome, mover domain.Team, rounds int, expected string) (string, error) {
	switch o {
	case domain.OutcomeCheckmate:
		return f.cat.Render("episode.checkmate", map[string]any{"Winner": teamName(mover), "Rounds": rounds})
	case domain.OutcomeStalemate:
		return f.cat.Render("episode.stalemate", nil)
	case domain.OutcomeDraw:
		return f.cat.Render("episode.draw", nil)
	case domain.OutcomePuzzleWon:
		return f.cat.Render("episode.puzzle_won", nil)
	case domain.OutcomePuzzleLost:
		return f.cat.Render("episode.puzzle_lost", map[string]any{"Expected": expected})
	default:
		return "", fmt.Errorf("unknown outcome %q", o)
	}
}

func (f *Formatter) Warning(rem time.Duration, ev round.Event) (string, error) {
	return f.cat.Render("round.warning", map[string]any{
		"Seconds": seconds(rem), "Leaders": strings.Join(ev.Leaders.Moves, ", "), "Count": ev.Leaders.Count,
	})
}

func (f *Formatter) Extended(rem time.Duration) (string, error) {
	return f.cat.Render("round.extended", map[string]any{"Seconds": seconds(rem)})
}

// Rejection returns "" for rejections that are not replied to.
func (f *Formatter) Rejection(voter string, res round.SubmitResult) (string, error) {
	switch res.Rejection {
	case round.RejectNotLegalMove, round.RejectDuplicateBlocked, round.RejectAccessDenied:
		return f.cat.Render("vote.rejected."+string(res.Rejection), map[string]any{
			"Voter": voter, "Reason": strings.ReplaceAll(string(res.Reason), "_", " "),
		})
	default:
		return "", nil
	}
}

func (f *Formatter) Help() (string, error) {
	return f.cat.Render("cmd.help", map[string]any{"Prefix": f.prefix})
}

// Moves numbers the legal list so voters can answer with an index.
func (f *Formatter) Moves(legal []string) (string, error) {
	if len(legal) == 0 {
		return f.NoRound()
	}
	return f.cat.Render("cmd.moves", map[string]any{"Moves": formatMoves(legal, movesListLimit)})
}

func (f *Formatter) NoRound() (string, error) {
	return f.cat.Render("cmd.no_round", nil)
}

func (f *Formatter) Denied(voter string) (string, error) {
	return f.cat.Render("cmd.denied", map[string]any{"Voter": voter})
}

func (f *Formatter) Usage(voter, usage string) (string, error) {
	return f.cat.Render("cmd.bad_arg", map[string]any{"Voter": voter, "Usage": f.prefix + usage})
}

func (f *Formatter) NextEpisode(puzzle bool, wait time.Duration) (string, error) {
	return f.cat.Render("episode.next", map[string]any{"Puzzle": puzzle, "Seconds": seconds(wait)})
}

func (f *Formatter) RelayCreated(code string) (string, error) {
	return f.cat.Render("relay.created", map[string]any{"Code": code})
}

func (f *Formatter) RelayReady(host, guest string) (string, error) {
	return f.cat.Render("relay.ready", map[string]any{"Host": host, "Guest": guest})
}

func formatMoves(legal []string, limit int) string {
	var sb strings.Builder
	for i, m := range legal {
		if i >= limit {
			fmt.Fprintf(&sb, " (+%d more)", len(legal)-limit)
			break
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d.%s", i+1, m)
	}
	return sb.String()
}

func teamName(t domain.Team) string {
	if t == domain.TeamBlack {
		return "Black"
	}
	return "White"
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
