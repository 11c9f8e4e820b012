package game

import (
	"context"
	"database/sql"
	"errors"

	"github.com/park285/tictactoe-server/internal/domain"
	"github.com/park285/tictactoe-server/internal/storage"
)

// ListLimit caps List results; callers filter by status to narrow.
const ListLimit = 100

const (
	gameColumns = "id, board_size, status, winner, current_player, created_at, updated_at"
	moveColumns = "id, game_id, move_number, position, player, created_at"

	qInsertGame = "INSERT INTO games (board_size) VALUES (?) RETURNING id"
	qSelectGame = "SELECT " + gameColumns + " FROM games WHERE id = ?"
	qDeleteGame = "DELETE FROM games WHERE id = ?"
	qSetTurn    = "UPDATE games SET current_player = ? WHERE id = ?"

	qListGames = `SELECT g.id, g.board_size, g.status, g.winner, g.current_player, g.created_at, g.updated_at,
       COUNT(m.id) AS move_count
FROM games g
LEFT JOIN game_moves m ON m.game_id = g.id`
	qListGamesTail = `
GROUP BY g.id, g.board_size, g.status, g.winner, g.current_player, g.created_at, g.updated_at
ORDER BY g.created_at DESC, g.id DESC
LIMIT ?`

	qSelectMove    = "SELECT " + moveColumns + " FROM game_moves WHERE id = ?"
	qListMoves     = "SELECT " + moveColumns + " FROM game_moves WHERE game_id = ? ORDER BY move_number ASC"
	qPositionTaken = "SELECT 1 FROM game_moves WHERE game_id = ? AND position = ?"
	qNextMove      = "SELECT COALESCE(MAX(move_number), 0) + 1 FROM game_moves WHERE game_id = ?"
	qInsertMove    = "INSERT INTO game_moves (game_id, move_number, position, player) VALUES (?, ?, ?, ?) RETURNING id"
)

// querier is satisfied by *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(r rowScanner, extra ...any) (domain.Game, error) {
	var g domain.Game
	dest := []any{&g.ID, &g.BoardSize, &g.Status, &g.Winner, &g.CurrentPlayer, &g.CreatedAt, &g.UpdatedAt}
	err := r.Scan(append(dest, extra...)...)
	return g, err
}

func scanMove(r rowScanner) (domain.GameMove, error) {
	var m domain.GameMove
	err := r.Scan(&m.ID, &m.GameID, &m.MoveNumber, &m.Position, &m.Player, &m.CreatedAt)
	return m, err
}

// fetchGame returns (nil, nil) when the row does not exist. forUpdate locks
// the row on engines that support it.
func fetchGame(ctx context.Context, q querier, d storage.Dialect, id int64, forUpdate bool) (*domain.Game, error) {
	query := qSelectGame
	if forUpdate {
		query += d.RowLock()
	}
	g, err := scanGame(q.QueryRowContext(ctx, d.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Engine("select game", err)
	}
	return &g, nil
}

func fetchMove(ctx context.Context, q querier, d storage.Dialect, id int64) (*domain.GameMove, error) {
	m, err := scanMove(q.QueryRowContext(ctx, d.Rebind(qSelectMove), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Engine("select move", err)
	}
	return &m, nil
}

func fetchMoves(ctx context.Context, q querier, d storage.Dialect, gameID int64) ([]domain.GameMove, error) {
	rows, err := q.QueryContext(ctx, d.Rebind(qListMoves), gameID)
	if err != nil {
		return nil, storage.Engine("list moves", err)
	}
	defer rows.Close()

	moves := make([]domain.GameMove, 0, 16)
	for rows.Next() {
		m, err := scanMove(rows)
		if err != nil {
			return nil, storage.Engine("scan move", err)
		}
		moves = append(moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Engine("list moves", err)
	}
	return moves, nil
}

func positionTaken(ctx context.Context, q querier, d storage.Dialect, gameID, position int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, d.Rebind(qPositionTaken), gameID, position).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storage.Engine("check position", err)
	}
	return true, nil
}

func nextMoveNumber(ctx context.Context, q querier, d storage.Dialect, gameID int64) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, d.Rebind(qNextMove), gameID).Scan(&n); err != nil {
		return 0, storage.Engine("next move number", err)
	}
	return n, nil
}
