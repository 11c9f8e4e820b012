package apiclient

import (
	"context"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/tictactoe-server/internal/apperr"
	"github.com/park285/tictactoe-server/internal/domain"
	"github.com/park285/tictactoe-server/internal/game"
	"github.com/park285/tictactoe-server/internal/httpapi"
	"github.com/park285/tictactoe-server/internal/msgcat"
	"github.com/park285/tictactoe-server/internal/storage"
	"github.com/park285/tictactoe-server/pkg/gamedto"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "games.db")}, nil)
	require.NoError(t, err)
	msgs, err := msgcat.New("")
	require.NoError(t, err)
	srv := httpapi.New(game.NewEngine(store, nil, nil), msgs, nil, httpapi.Options{})

	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = store.Close()
	})
	return New("http://game.test", WithDialer(func(string) (net.Conn, error) { return ln.Dial() }), WithTimeout(5*time.Second))
}

func TestClientRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	size := int64(4)
	g, err := c.CreateGame(ctx, &size)
	require.NoError(t, err)
	assert.EqualValues(t, 4, g.BoardSize)

	mv, err := c.AddMove(ctx, g.ID, 5, domain.PlayerX)
	require.NoError(t, err)
	assert.EqualValues(t, 1, mv.MoveNumber)

	_, err = c.AddMove(ctx, g.ID, 5, domain.PlayerO)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	assert.Equal(t, "Position 5 is already taken", err.Error())

	draw := domain.WinnerDraw
	completed := domain.StatusCompleted
	up, err := c.UpdateGame(ctx, g.ID, gamedto.UpdateGameRequest{Status: &completed, Winner: gamedto.Some(draw)})
	require.NoError(t, err)
	require.NotNil(t, up.Winner)
	assert.Equal(t, domain.WinnerDraw, *up.Winner)

	// status-only update must not clear the winner
	abandoned := domain.StatusAbandoned
	up, err = c.UpdateGame(ctx, g.ID, gamedto.UpdateGameRequest{Status: &abandoned})
	require.NoError(t, err)
	require.NotNil(t, up.Winner)

	full, err := c.GetGameWithMoves(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, full.Moves, 1)

	items, err := c.ListGames(ctx, &abandoned)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.EqualValues(t, 1, items[0].MoveCount)

	require.NoError(t, c.DeleteGame(ctx, g.ID))
	_, err = c.GetGame(ctx, g.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = c.ListMoves(ctx, g.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReadsRetryOnUnavailable(t *testing.T) {
	var calls atomic.Int32
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) < 2 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"success":true,"data":[]}`)
	}}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	c := New("http://game.test", WithDialer(func(string) (net.Conn, error) { return ln.Dial() }), WithRetry(3))
	moves, err := c.ListMoves(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, moves)
	assert.EqualValues(t, 2, calls.Load())
}

func TestMovesAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	}}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	c := New("http://game.test", WithDialer(func(string) (net.Conn, error) { return ln.Dial() }), WithRetry(3))
	_, err := c.AddMove(context.Background(), 1, 0, domain.PlayerX)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}
