// Package rules adapts corentings/chess to the oracle the round controller consumes.
package rules

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-ChessVote/internal/ballot"
	"github.com/park285/Cheese-ChessVote/internal/domain"
)

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrGameOver    = errors.New("game already finished")
)

// Board is one game in progress. Safe for concurrent readers; the controller is
// the only writer.
type Board struct {
	mu       sync.RWMutex
	game     *nchess.Game
	startFEN string
	movesUCI []string
	movesSAN []string
}

func NewBoard() *Board {
	return &Board{game: nchess.NewGame(), startFEN: StartFEN}
}

// FromFEN loads a position; empty or "startpos" means the initial position.
func FromFEN(fen string) (*Board, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || strings.EqualFold(fen, "startpos") {
		return NewBoard(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Board{game: nchess.NewGame(opt), startFEN: fen}, nil
}

// LegalMoves lists every legal move in SAN, in generator order. Empty once the
// game has an outcome.
func (b *Board) LegalMoves() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.game.Outcome() != nchess.NoOutcome {
		return []string{}
	}
	pos := b.game.Position()
	moves := b.game.ValidMoves()
	out := make([]string, 0, len(moves))
	for i := range moves {
		out = append(out, nchess.AlgebraicNotation{}.Encode(pos, &moves[i]))
	}
	return out
}

func (b *Board) Turn() domain.Team {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return teamFrom(b.game.Position().Turn())
}

// ApplyMove plays a move given as UCI or SAN (check marks optional).
func (b *Board) ApplyMove(move string) (domain.AppliedMove, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.game.Outcome() != nchess.NoOutcome {
		return domain.AppliedMove{}, ErrGameOver
	}
	mv, ok := b.findLocked(move)
	if !ok {
		return domain.AppliedMove{}, fmt.Errorf("%w: %q", ErrIllegalMove, strings.TrimSpace(move))
	}
	pos := b.game.Position()
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := b.game.Move(mv, nil); err != nil {
		return domain.AppliedMove{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	uci := mv.String()
	b.movesUCI = append(b.movesUCI, uci)
	b.movesSAN = append(b.movesSAN, san)
	return appliedFrom(san, uci), nil
}

// SANForUCI resolves a coordinate move against the current position.
func (b *Board) SANForUCI(uci string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	uci = strings.ToLower(strings.TrimSpace(uci))
	pos := b.game.Position()
	moves := b.game.ValidMoves()
	for i := range moves {
		if moves[i].String() == uci {
			return nchess.AlgebraicNotation{}.Encode(pos, &moves[i]), true
		}
	}
	return "", false
}

func (b *Board) Terminal() domain.Terminal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch b.game.Outcome() {
	case nchess.NoOutcome:
		return domain.Terminal{}
	case nchess.Draw:
		if b.game.Method() == nchess.Stalemate {
			return domain.Terminal{Stalemate: true}
		}
		return domain.Terminal{Draw: true}
	default:
		if b.game.Method() == nchess.Checkmate {
			return domain.Terminal{Checkmate: true}
		}
		// decisive results other than mate (resignation) end the game as well
		return domain.Terminal{Checkmate: true}
	}
}

// Winner is the side that delivered mate, if any.
func (b *Board) Winner() (domain.Team, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch b.game.Outcome() {
	case nchess.WhiteWon:
		return domain.TeamWhite, true
	case nchess.BlackWon:
		return domain.TeamBlack, true
	default:
		return domain.TeamWhite, false
	}
}

func (b *Board) FEN() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.game.FEN()
}

func (b *Board) InitialFEN() string { return b.startFEN }

func (b *Board) MovesUCI() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.movesUCI...)
}

func (b *Board) MovesSAN() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.movesSAN...)
}

// LastMove is the most recent move played on this board, if any.
func (b *Board) LastMove() (domain.AppliedMove, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := len(b.movesUCI)
	if n == 0 {
		return domain.AppliedMove{}, false
	}
	return appliedFrom(b.movesSAN[n-1], b.movesUCI[n-1]), true
}

func (b *Board) findLocked(move string) (*nchess.Move, bool) {
	raw := strings.TrimSpace(move)
	if raw == "" {
		return nil, false
	}
	pos := b.game.Position()
	moves := b.game.ValidMoves()
	uci := strings.ToLower(raw)
	for i := range moves {
		if moves[i].String() == uci {
			return &moves[i], true
		}
	}
	want := ballot.Normalize(raw)
	for i := range moves {
		if ballot.Normalize(nchess.AlgebraicNotation{}.Encode(pos, &moves[i])) == want {
			return &moves[i], true
		}
	}
	return nil, false
}

func appliedFrom(san, uci string) domain.AppliedMove {
	out := domain.AppliedMove{SAN: san, UCI: uci}
	if len(uci) >= 4 {
		out.From, out.To = uci[0:2], uci[2:4]
	}
	if len(uci) > 4 {
		out.Promotion = uci[4:]
	}
	return out
}

func teamFrom(c nchess.Color) domain.Team {
	if c == nchess.Black {
		return domain.TeamBlack
	}
	return domain.TeamWhite
}
