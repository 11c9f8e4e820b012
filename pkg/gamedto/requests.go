package gamedto

import (
	"encoding/json"

	"github.com/park285/tictactoe-server/internal/domain"
)

type CreateGameRequest struct {
	BoardSize *int64 `json:"board_size,omitempty"`
}

// UpdateGameRequest carries the caller-reported outcome. Winner distinguishes
// "leave as is" from "clear".
type UpdateGameRequest struct {
	Status        *domain.GameStatus          `json:"status,omitempty"`
	Winner        Optional[domain.GameWinner] `json:"winner"`
	CurrentPlayer *domain.Player              `json:"current_player,omitempty"`
}

// MarshalJSON leaves out an unset winner so the server does not read it as a clear.
func (r UpdateGameRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3)
	if r.Status != nil {
		out["status"] = *r.Status
	}
	if r.Winner.Set {
		out["winner"] = r.Winner
	}
	if r.CurrentPlayer != nil {
		out["current_player"] = *r.CurrentPlayer
	}
	return json.Marshal(out)
}

type MoveRequest struct {
	Position *int64        `json:"position"`
	Player   domain.Player `json:"player"`
}
