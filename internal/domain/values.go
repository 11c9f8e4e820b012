package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEncoding is returned when a token does not name a known enum value.
var ErrInvalidEncoding = errors.New("invalid encoding")

// Player is one of the two symbols taking turns on the board.
type Player uint8

const (
	PlayerX Player = iota + 1
	PlayerO
)

// GameWinner is the reported outcome of a game.
type GameWinner uint8

const (
	WinnerX GameWinner = iota + 1
	WinnerO
	WinnerDraw
)

// GameStatus is the lifecycle state of a game.
type GameStatus uint8

const (
	StatusInProgress GameStatus = iota + 1
	StatusCompleted
	StatusAbandoned
)

// token tables: canonical render first, then accepted aliases (compared case-insensitively).
var (
	playerTokens = map[Player][]string{
		PlayerX: {"X"},
		PlayerO: {"O"},
	}
	winnerTokens = map[GameWinner][]string{
		WinnerX:    {"X"},
		WinnerO:    {"O"},
		WinnerDraw: {"draw"},
	}
	statusTokens = map[GameStatus][]string{
		StatusInProgress: {"in_progress", "in-progress"},
		StatusCompleted:  {"completed"},
		StatusAbandoned:  {"abandoned"},
	}
)

func lookup[T comparable](table map[T][]string, kind, raw string) (T, error) {
	s := strings.TrimSpace(raw)
	for v, tokens := range table {
		for _, tok := range tokens {
			if strings.EqualFold(tok, s) {
				return v, nil
			}
		}
	}
	var zero T
	return zero, fmt.Errorf("%s %q: %w", kind, raw, ErrInvalidEncoding)
}

func render[T comparable](table map[T][]string, v T) string {
	if tokens, ok := table[v]; ok {
		return tokens[0]
	}
	return ""
}

// ParsePlayer decodes "X"/"x"/"O"/"o".
func ParsePlayer(s string) (Player, error) { return lookup(playerTokens, "player", s) }

// ParseGameWinner decodes "X", "O" or "draw" in any case.
func ParseGameWinner(s string) (GameWinner, error) { return lookup(winnerTokens, "winner", s) }

// ParseGameStatus decodes "in_progress" (or "in-progress"), "completed" and "abandoned" in any case.
func ParseGameStatus(s string) (GameStatus, error) { return lookup(statusTokens, "game status", s) }

func (p Player) String() string     { return render(playerTokens, p) }
func (w GameWinner) String() string { return render(winnerTokens, w) }
func (s GameStatus) String() string { return render(statusTokens, s) }

func (p Player) Valid() bool {
	_, ok := playerTokens[p]
	return ok
}

func (w GameWinner) Valid() bool {
	_, ok := winnerTokens[w]
	return ok
}

func (s GameStatus) Valid() bool {
	_, ok := statusTokens[s]
	return ok
}

// Opponent returns the symbol that moves after p.
func (p Player) Opponent() Player {
	if p == PlayerX {
		return PlayerO
	}
	return PlayerX
}

// Terminal reports whether no further moves may be applied.
func (s GameStatus) Terminal() bool { return s != StatusInProgress }

func marshalToken(kind, tok string) ([]byte, error) {
	if tok == "" {
		return nil, fmt.Errorf("%s: %w", kind, ErrInvalidEncoding)
	}
	return json.Marshal(tok)
}

func unmarshalToken(b []byte) (string, error) {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return s, nil
}

func (p Player) MarshalJSON() ([]byte, error) { return marshalToken("player", p.String()) }

func (p *Player) UnmarshalJSON(b []byte) error {
	s, err := unmarshalToken(b)
	if err != nil {
		return err
	}
	v, err := ParsePlayer(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (w GameWinner) MarshalJSON() ([]byte, error) { return marshalToken("winner", w.String()) }

func (w *GameWinner) UnmarshalJSON(b []byte) error {
	s, err := unmarshalToken(b)
	if err != nil {
		return err
	}
	v, err := ParseGameWinner(s)
	if err != nil {
		return err
	}
	*w = v
	return nil
}

func (s GameStatus) MarshalJSON() ([]byte, error) { return marshalToken("game status", s.String()) }

func (s *GameStatus) UnmarshalJSON(b []byte) error {
	raw, err := unmarshalToken(b)
	if err != nil {
		return err
	}
	v, err := ParseGameStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Storage encoding uses the same canonical tokens as the wire format.

func (p Player) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("player %d: %w", p, ErrInvalidEncoding)
	}
	return p.String(), nil
}

func (p *Player) Scan(src any) error {
	s, err := scanText(src)
	if err != nil {
		return err
	}
	v, err := ParsePlayer(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (w GameWinner) Value() (driver.Value, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("winner %d: %w", w, ErrInvalidEncoding)
	}
	return w.String(), nil
}

func (w *GameWinner) Scan(src any) error {
	s, err := scanText(src)
	if err != nil {
		return err
	}
	v, err := ParseGameWinner(s)
	if err != nil {
		return err
	}
	*w = v
	return nil
}

func (s GameStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("game status %d: %w", s, ErrInvalidEncoding)
	}
	return s.String(), nil
}

func (s *GameStatus) Scan(src any) error {
	raw, err := scanText(src)
	if err != nil {
		return err
	}
	v, err := ParseGameStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func scanText(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("cannot scan %T: %w", src, ErrInvalidEncoding)
	}
}
