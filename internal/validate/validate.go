// Package validate turns decoded requests into the preconditions the game
// engine relies on. Nothing here touches storage.
package validate

import (
	"strconv"
	"strings"

	"github.com/park285/tictactoe-server/internal/apperr"
	"github.com/park285/tictactoe-server/internal/domain"
	"github.com/park285/tictactoe-server/internal/game"
	"github.com/park285/tictactoe-server/pkg/gamedto"
)

const (
	MinBoardSize = 3
	MaxBoardSize = 10
)

// BoardSize defaults a missing value and range-checks the rest.
func BoardSize(size *int64) (int64, error) {
	if size == nil {
		return game.DefaultBoardSize, nil
	}
	if *size < MinBoardSize || *size > MaxBoardSize {
		return 0, apperr.Invalid("Invalid board_size! Expected a number between %d and %d.", MinBoardSize, MaxBoardSize)
	}
	return *size, nil
}

func CreateRequest(req gamedto.CreateGameRequest) (int64, error) {
	return BoardSize(req.BoardSize)
}

func GameID(id int64) (int64, error) {
	if id < 0 {
		return 0, apperr.Invalid("Invalid game ID! Expected a non-negative integer.")
	}
	return id, nil
}

// ParseGameID reads an id from a path segment.
func ParseGameID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperr.Invalid("Invalid game ID! Expected a non-negative integer.")
	}
	return GameID(id)
}

func Position(p int64) (int64, error) {
	if p < 0 {
		return 0, apperr.Invalid("Invalid position! Expected a non-negative number.")
	}
	return p, nil
}

// ListQuery parses the optional ?status= filter.
func ListQuery(status string) (game.Filters, error) {
	if strings.TrimSpace(status) == "" {
		return game.Filters{}, nil
	}
	s, err := domain.ParseGameStatus(status)
	if err != nil {
		return game.Filters{}, apperr.Invalid("Invalid status value! Expected \"in_progress\", \"completed\" or \"abandoned\".")
	}
	return game.Filters{Status: &s}, nil
}

// UpdateRequest requires at least one of status or winner. current_player is
// accepted for compatibility but never applied.
func UpdateRequest(id int64, req gamedto.UpdateGameRequest) (int64, game.Update, error) {
	id, err := GameID(id)
	if err != nil {
		return 0, game.Update{}, err
	}
	if req.Status == nil && !req.Winner.Set {
		return 0, game.Update{}, apperr.Invalid("No valid fields to update")
	}
	if req.Status != nil && !req.Status.Valid() {
		return 0, game.Update{}, apperr.Invalid("Invalid status value! Expected \"in_progress\", \"completed\" or \"abandoned\".")
	}
	if req.Winner.Set && !req.Winner.Null && !req.Winner.Value.Valid() {
		return 0, game.Update{}, apperr.Invalid("Invalid winner value! Expected \"X\", \"O\", \"draw\" or null.")
	}
	if req.CurrentPlayer != nil && !req.CurrentPlayer.Valid() {
		return 0, game.Update{}, apperr.Invalid("Invalid current_player value! Expected \"X\" or \"O\".")
	}
	return id, game.Update{Status: req.Status, Winner: req.Winner}, nil
}

func MoveRequest(id int64, req gamedto.MoveRequest) (int64, int64, domain.Player, error) {
	id, err := GameID(id)
	if err != nil {
		return 0, 0, 0, err
	}
	if req.Position == nil {
		return 0, 0, 0, apperr.Invalid("Invalid position! Expected a non-negative number.")
	}
	pos, err := Position(*req.Position)
	if err != nil {
		return 0, 0, 0, err
	}
	if !req.Player.Valid() {
		return 0, 0, 0, apperr.Invalid("Invalid player value! Expected \"X\" or \"O\".")
	}
	return id, pos, req.Player, nil
}
