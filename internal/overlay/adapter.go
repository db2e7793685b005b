package overlay

import (
	"time"

	"github.com/park285/Cheese-ChessVote/internal/domain"
	"github.com/park285/Cheese-ChessVote/internal/round"
	"github.com/park285/Cheese-ChessVote/internal/tally"
	"github.com/park285/Cheese-ChessVote/pkg/votedto"
)

func ToDTOState(st round.State, fen, episodeID string) *votedto.RoundState {
	out := &votedto.RoundState{
		Phase:       string(st.Phase),
		Round:       st.Round,
		Turn:        st.Turn.String(),
		Legal:       nonNil(st.Legal),
		Tally:       toDTOTally(st.Snapshot),
		Leaders:     nonNil(st.Leaders.Moves),
		LeaderVotes: st.Leaders.Count,
		TotalVotes:  st.Total,
		RemainingMS: millis(st.Remaining),
		Paused:      st.Paused,
		Immediate:   st.Immediate,
		Outcome:     string(st.Outcome),
		Fault:       st.Fault,
		FEN:         fen,
		EpisodeID:   episodeID,
	}
	if st.LastMove != nil {
		out.LastMove = toDTOMove(*st.LastMove)
	}
	return out
}

func ToDTOEvent(ev round.Event) *votedto.Event {
	out := &votedto.Event{
		Kind:        string(ev.Kind),
		Round:       ev.Round,
		Turn:        ev.Turn.String(),
		Legal:       ev.Legal,
		Mirror:      ev.Mirror,
		Immediate:   ev.Immediate,
		RemainingMS: millis(ev.Remaining),
		Tally:       toDTOTally(ev.Snapshot),
		Leaders:     ev.Leaders.Moves,
		TotalVotes:  ev.Total,
		Votes:       ev.Votes,
		Source:      string(ev.Source),
		Outcome:     string(ev.Outcome),
		Expected:    ev.Expected,
	}
	if ev.Kind == round.EventMoveApplied {
		out.Move = toDTOMove(ev.Move)
	}
	if ev.Spin != nil {
		wedges := make([]votedto.Wedge, 0, len(ev.Spin.Wedges))
		for _, w := range ev.Spin.Wedges {
			wedges = append(wedges, votedto.Wedge{Move: w.Move, Count: w.Count, Color: w.Color})
		}
		out.Spin = &votedto.Spin{Wedges: wedges, Pick: ev.Spin.Pick, Move: ev.Spin.Move, DurationMS: millis(ev.Spin.Duration)}
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}

func ToDTOEpisode(rec domain.EpisodeRecord) votedto.Episode {
	return votedto.Episode{
		ID:        rec.ID,
		Channel:   rec.Channel,
		Mode:      string(rec.Mode),
		Puzzle:    rec.Puzzle,
		PuzzleID:  rec.PuzzleID,
		Outcome:   string(rec.Outcome),
		Winner:    rec.Winner,
		MovesSAN:  nonNil(rec.MovesSAN),
		Rounds:    rec.Rounds,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
	}
}

func toDTOMove(m domain.AppliedMove) *votedto.Move {
	return &votedto.Move{SAN: m.SAN, UCI: m.UCI, From: m.From, To: m.To, Promotion: m.Promotion}
}

func toDTOTally(entries []tally.Entry) []votedto.TallyEntry {
	out := make([]votedto.TallyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, votedto.TallyEntry{Move: e.Move, Count: e.Count, Color: e.Color})
	}
	return out
}

func millis(d time.Duration) int64 { return d.Milliseconds() }

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
