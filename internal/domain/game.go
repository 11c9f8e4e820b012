package domain

import "time"

// Game is one match. BoardSize is fixed at creation; CurrentPlayer only changes
// as a side effect of an accepted move.
type Game struct {
	ID            int64       `json:"id"`
	BoardSize     int64       `json:"board_size"`
	Status        GameStatus  `json:"status"`
	Winner        *GameWinner `json:"winner"`
	CurrentPlayer Player      `json:"current_player"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// GameMove is one accepted placement. Rows are append-only.
type GameMove struct {
	ID         int64     `json:"id"`
	GameID     int64     `json:"game_id"`
	MoveNumber int64     `json:"move_number"`
	Position   int64     `json:"position"`
	Player     Player    `json:"player"`
	CreatedAt  time.Time `json:"created_at"`
}

type GameWithMoves struct {
	Game
	Moves []GameMove `json:"moves"`
}

type GameListItem struct {
	Game
	MoveCount int64 `json:"move_count"`
}
