// Package game applies game lifecycle operations and moves against the store,
// enforcing turn order, cell occupancy and the terminal-state lock.
//
// Every operation runs on the storage worker pool with its own connection.
// AddMove additionally holds the per-game lock and runs its read-check-insert
// sequence in a single write transaction; the UNIQUE(game_id, position)
// constraint backs both up.
package game

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/tictactoe-server/internal/apperr"
	"github.com/park285/tictactoe-server/internal/domain"
	"github.com/park285/tictactoe-server/internal/gamelock"
	"github.com/park285/tictactoe-server/internal/storage"
	"github.com/park285/tictactoe-server/pkg/gamedto"
)

// DefaultBoardSize is used when a create request omits board_size.
const DefaultBoardSize = 3

type Filters struct {
	Status *domain.GameStatus
}

// Update lists the caller-reported fields to change. A set-but-null Winner
// clears the stored winner.
type Update struct {
	Status *domain.GameStatus
	Winner gamedto.Optional[domain.GameWinner]
}

func (u Update) empty() bool { return u.Status == nil && !u.Winner.Set }

type Engine struct {
	store  *storage.Provider
	locks  gamelock.Locker
	logger *zap.Logger
}

func NewEngine(store *storage.Provider, locks gamelock.Locker, logger *zap.Logger) *Engine {
	if locks == nil {
		locks = gamelock.NewLocal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, locks: locks, logger: logger}
}

func notFound(id int64) error {
	return apperr.NotFound("Game with ID %d was not found", id)
}

func (e *Engine) Create(ctx context.Context, boardSize int64) (*domain.Game, error) {
	d := e.store.Dialect()
	g, err := storage.Run(ctx, e.store, func(ctx context.Context, conn *sql.Conn) (*domain.Game, error) {
		var id int64
		if err := conn.QueryRowContext(ctx, d.Rebind(qInsertGame), boardSize).Scan(&id); err != nil {
			return nil, storage.Engine("insert game", err)
		}
		g, err := fetchGame(ctx, conn, d, id, false)
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, apperr.Internal("Failed to load created game %d", id)
		}
		return g, nil
	})
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	e.logger.Info("game_create", zap.Int64("game_id", g.ID), zap.Int64("board_size", g.BoardSize))
	return g, nil
}

func (e *Engine) Get(ctx context.Context, id int64) (*domain.Game, error) {
	d := e.store.Dialect()
	g, err := storage.Run(ctx, e.store, func(ctx context.Context, conn *sql.Conn) (*domain.Game, error) {
		g, err := fetchGame(ctx, conn, d, id, false)
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, notFound(id)
		}
		return g, nil
	})
	return g, apperr.FromStorage(err)
}

func (e *Engine) GetWithMoves(ctx context.Context, id int64) (*domain.GameWithMoves, error) {
	d := e.store.Dialect()
	out, err := storage.Run(ctx, e.store, func(ctx context.Context, conn *sql.Conn) (*domain.GameWithMoves, error) {
		g, err := fetchGame(ctx, conn, d, id, false)
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, notFound(id)
		}
		moves, err := fetchMoves(ctx, conn, d, id)
		if err != nil {
			return nil, err
		}
		return &domain.GameWithMoves{Game: *g, Moves: moves}, nil
	})
	return out, apperr.FromStorage(err)
}

// List returns at most ListLimit games, newest first, each with its move count.
func (e *Engine) List(ctx context.Context, f Filters) ([]domain.GameListItem, error) {
	d := e.store.Dialect()
	query := qListGames
	args := make([]any, 0, 2)
	if f.Status != nil {
		query += "\nWHERE g.status = ?"
		args = append(args, *f.Status)
	}
	query += qListGamesTail
	args = append(args, ListLimit)

	items, err := storage.Run(ctx, e.store, func(ctx context.Context, conn *sql.Conn) ([]domain.GameListItem, error) {
		rows, err := conn.QueryContext(ctx, d.Rebind(query), args...)
		if err != nil {
			return nil, storage.Engine("list games", err)
		}
		defer rows.Close()

		items := make([]domain.GameListItem, 0, 16)
		for rows.Next() {
			var count int64
			g, err := scanGame(rows, &count)
			if err != nil {
				return nil, storage.Engine("scan game", err)
			}
			items = append(items, domain.GameListItem{Game: g, MoveCount: count})
		}
		if err := rows.Err(); err != nil {
			return nil, storage.Engine("list games", err)
		}
		return items, nil
	})
	return items, apperr.FromStorage(err)
}

// Update writes exactly the supplied fields in one statement and returns the
// stored game. An empty update returns the game unchanged.
func (e *Engine) Update(ctx context.Context, id int64, u Update) (*domain.Game, error) {
	d := e.store.Dialect()
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *u.Status)
	}
	if u.Winner.Set {
		if u.Winner.Null {
			sets = append(sets, "winner = NULL")
		} else {
			sets = append(sets, "winner = ?")
			args = append(args, u.Winner.Value)
		}
	}
	args = append(args, id)
	stmt := "UPDATE games SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	g, err := storage.Run(ctx, e.store, func(ctx context.Context, conn *sql.Conn) (*domain.Game, error) {
		var out *domain.Game
		err := storage.InTx(ctx, conn, func(tx *sql.Tx) error {
			g, err := fetchGame(ctx, tx, d, id, true)
			if err != nil {
				return err
			}
			if g == nil {
				return notFound(id)
			}
			if u.empty() {
				out = g
				return nil
			}
			if _, err := tx.ExecContext(ctx, d.Rebind(stmt), args...); err != nil {
				return storage.Engine("update game", err)
			}
			if out, err = fetchGame(ctx, tx, d, id, false); err != nil {
				return err
			}
			if out == nil {
				return apperr.Internal("Failed to load updated game %d", id)
			}
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	if !u.empty() {
		fields := []zap.Field{zap.Int64("game_id", id), zap.Stringer("status", g.Status)}
		if g.Winner != nil {
			fields = append(fields, zap.Stringer("winner", *g.Winner))
		}
		e.logger.Info("game_update", fields...)
	}
	return g, nil
}

// Delete removes the game; its moves go with it.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	d := e.store.Dialect()
	err := e.store.Do(ctx, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, d.Rebind(qDeleteGame), id)
		if err != nil {
			return storage.Engine("delete game", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storage.Engine("delete game", err)
		}
		if n == 0 {
			return notFound(id)
		}
		return nil
	})
	if err != nil {
		return apperr.FromStorage(err)
	}
	e.logger.Info("game_delete", zap.Int64("game_id", id))
	return nil
}

// AddMove appends a move for player at position and hands the turn to the
// opponent. All checks and writes commit together or not at all.
func (e *Engine) AddMove(ctx context.Context, gameID, position int64, player domain.Player) (*domain.GameMove, error) {
	unlock, err := e.locks.Lock(ctx, gameID)
	if err != nil {
		return nil, apperr.FromStorage(storage.Wrap(storage.ReasonOffload, "acquire game lock", err))
	}
	defer unlock()

	d := e.store.Dialect()
	mv, err := storage.Run(ctx, e.store, func(ctx context.Context, conn *sql.Conn) (*domain.GameMove, error) {
		var out *domain.GameMove
		err := storage.InTx(ctx, conn, func(tx *sql.Tx) error {
			g, err := fetchGame(ctx, tx, d, gameID, true)
			if err != nil {
				return err
			}
			if g == nil {
				return notFound(gameID)
			}
			if g.Status != domain.StatusInProgress {
				return apperr.Invalid("Cannot add a move to a finished game")
			}
			if g.CurrentPlayer != player {
				return apperr.Invalid("It's %s's turn, not %s's", g.CurrentPlayer, player)
			}
			taken, err := positionTaken(ctx, tx, d, gameID, position)
			if err != nil {
				return err
			}
			if taken {
				return positionTakenErr(position)
			}
			number, err := nextMoveNumber(ctx, tx, d, gameID)
			if err != nil {
				return err
			}

			var moveID int64
			err = tx.QueryRowContext(ctx, d.Rebind(qInsertMove), gameID, number, position, player).Scan(&moveID)
			if d.IsUniqueViolation(err) {
				return positionTakenErr(position)
			}
			if err != nil {
				return storage.Engine("insert move", err)
			}
			if _, err := tx.ExecContext(ctx, d.Rebind(qSetTurn), player.Opponent(), gameID); err != nil {
				return storage.Engine("switch turn", err)
			}

			if out, err = fetchMove(ctx, tx, d, moveID); err != nil {
				return err
			}
			if out == nil {
				return apperr.Internal("Failed to load created move %d", moveID)
			}
			return nil
		})
		return out, err
	})
	if err != nil {
		if apperr.Is(err, apperr.KindInvalidInput) {
			e.logger.Debug("game_move_rejected",
				zap.Int64("game_id", gameID),
				zap.Int64("position", position),
				zap.Stringer("player", player),
				zap.String("reason", err.Error()),
			)
		}
		return nil, apperr.FromStorage(err)
	}
	e.logger.Info("game_move",
		zap.Int64("game_id", gameID),
		zap.Int64("move_number", mv.MoveNumber),
		zap.Int64("position", mv.Position),
		zap.Stringer("player", mv.Player),
	)
	return mv, nil
}

func positionTakenErr(position int64) error {
	return apperr.Invalid("Position %d is already taken", position)
}

func (e *Engine) ListMoves(ctx context.Context, gameID int64) ([]domain.GameMove, error) {
	d := e.store.Dialect()
	moves, err := storage.Run(ctx, e.store, func(ctx context.Context, conn *sql.Conn) ([]domain.GameMove, error) {
		g, err := fetchGame(ctx, conn, d, gameID, false)
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, notFound(gameID)
		}
		return fetchMoves(ctx, conn, d, gameID)
	})
	return moves, apperr.FromStorage(err)
}
