// Package racecheck fires concurrent moves at one cell of a fresh game and
// reports how many the server accepted.
package racecheck

import (
	"context"
	"fmt"
	"sync"

	"github.com/park285/tictactoe-server/internal/apiclient"
	"github.com/park285/tictactoe-server/internal/apperr"
	"github.com/park285/tictactoe-server/internal/domain"
)

type Result struct {
	GameID   int64
	Accepted int
	Rejected int
	// Failed counts transport errors and anything other than a clean 400.
	Failed    int
	Errors    map[string]int
	MoveCount int
}

// OK reports whether exactly one move landed and it is the only one stored.
func (r Result) OK() bool { return r.Accepted == 1 && r.MoveCount == 1 && r.Failed == 0 }

func (r Result) String() string {
	return fmt.Sprintf("game=%d accepted=%d rejected=%d failed=%d stored=%d", r.GameID, r.Accepted, r.Rejected, r.Failed, r.MoveCount)
}

// Run creates a game and sends n simultaneous X moves to position.
func Run(ctx context.Context, c *apiclient.Client, n int, position int64) (Result, error) {
	if n < 1 {
		return Result{}, fmt.Errorf("attempts must be positive, got %d", n)
	}
	g, err := c.CreateGame(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("create game: %w", err)
	}

	res := Result{GameID: g.ID, Errors: map[string]int{}}
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := c.AddMove(ctx, g.ID, position, domain.PlayerX)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Accepted++
			case apperr.Is(err, apperr.KindInvalidInput):
				res.Rejected++
				res.Errors[err.Error()]++
			default:
				res.Failed++
				res.Errors[err.Error()]++
			}
		}()
	}
	close(start)
	wg.Wait()

	moves, err := c.ListMoves(ctx, g.ID)
	if err != nil {
		return res, fmt.Errorf("list moves: %w", err)
	}
	res.MoveCount = len(moves)
	return res, nil
}
