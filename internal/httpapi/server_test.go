package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"gopkg.in/yaml.v3"

	"github.com/park285/tictactoe-server/internal/domain"
	"github.com/park285/tictactoe-server/internal/game"
	"github.com/park285/tictactoe-server/internal/msgcat"
	"github.com/park285/tictactoe-server/internal/storage"
	"github.com/park285/tictactoe-server/pkg/gamedto"
)

type testServer struct {
	t      *testing.T
	client *fasthttp.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "games.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return serveGames(t, game.NewEngine(store, nil, nil))
}

func serveGames(t *testing.T, games GameService) *testServer {
	t.Helper()
	msgs, err := msgcat.New("")
	require.NoError(t, err)

	srv := New(games, msgs, nil, Options{CORSOrigins: []string{"http://localhost:5173"}})
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = ln.Close()
	})

	return &testServer{
		t: t,
		client: &fasthttp.Client{
			Dial: func(string) (net.Conn, error) { return ln.Dial() },
		},
	}
}

type reply struct {
	status  int
	body    []byte
	headers map[string]string
}

func (ts *testServer) do(method, path, body string, headers ...string) reply {
	ts.t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI("http://test" + path)
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	require.NoError(ts.t, ts.client.Do(req, resp))

	out := reply{status: resp.StatusCode(), body: append([]byte(nil), resp.Body()...), headers: map[string]string{}}
	for _, h := range []string{"Access-Control-Allow-Origin", "X-Request-Id", "Allow", "Content-Type", "Location"} {
		out.headers[h] = string(resp.Header.Peek(h))
	}
	return out
}

func decode[T any](t *testing.T, r reply) gamedto.Success[T] {
	t.Helper()
	var env gamedto.Success[T]
	require.NoError(t, json.Unmarshal(r.body, &env), string(r.body))
	require.True(t, env.Success, string(r.body))
	return env
}

func golden(t *testing.T, name string, r reply) {
	t.Helper()
	g := goldie.New(t)
	g.Assert(t, name, append(bytes.TrimSpace(r.body), '\n'))
}

func TestGameLifecycle(t *testing.T) {
	ts := newTestServer(t)

	r := ts.do("POST", "/api/games", `{"board_size":3}`)
	require.Equal(t, 200, r.status, string(r.body))
	created := decode[domain.Game](t, r)
	assert.Equal(t, "Game created successfully", created.Message)
	assert.EqualValues(t, 1, created.Data.ID)
	assert.Equal(t, "application/json", r.headers["Content-Type"])

	r = ts.do("POST", "/api/games/1/moves", `{"position":0,"player":"X"}`)
	require.Equal(t, 200, r.status, string(r.body))
	mv := decode[domain.GameMove](t, r)
	assert.Equal(t, "Move added successfully", mv.Message)
	assert.EqualValues(t, 1, mv.Data.MoveNumber)

	r = ts.do("POST", "/api/games/1/moves", `{"position":0,"player":"O"}`)
	assert.Equal(t, 400, r.status)
	golden(t, "move_position_taken", r)

	r = ts.do("POST", "/api/games/1/moves", `{"position":4,"player":"x"}`)
	assert.Equal(t, 400, r.status)
	golden(t, "move_wrong_turn", r)

	r = ts.do("PATCH", "/api/games/1", `{"status":"completed","winner":"X"}`)
	require.Equal(t, 200, r.status, string(r.body))
	up := decode[domain.Game](t, r)
	assert.Equal(t, "Game updated successfully", up.Message)
	assert.Equal(t, domain.StatusCompleted, up.Data.Status)
	require.NotNil(t, up.Data.Winner)
	assert.Equal(t, domain.WinnerX, *up.Data.Winner)

	r = ts.do("POST", "/api/games/1/moves", `{"position":1,"player":"O"}`)
	assert.Equal(t, 400, r.status)
	golden(t, "move_finished_game", r)

	r = ts.do("GET", "/api/games/1/full", "")
	require.Equal(t, 200, r.status)
	full := decode[domain.GameWithMoves](t, r)
	require.Len(t, full.Data.Moves, 1)
	assert.Empty(t, full.Message)

	r = ts.do("GET", "/api/games/1/moves", "")
	require.Equal(t, 200, r.status)
	assert.Len(t, decode[[]domain.GameMove](t, r).Data, 1)

	r = ts.do("DELETE", "/api/games/1", "")
	require.Equal(t, 200, r.status)
	assert.JSONEq(t, `{"success":true,"data":null,"message":"Game deleted successfully"}`, string(r.body))

	r = ts.do("GET", "/api/games/1/moves", "")
	assert.Equal(t, 404, r.status)
	golden(t, "game_not_found", r)
}

func TestUpdateWinnerNullClears(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, 200, ts.do("POST", "/api/games", "").status)
	require.Equal(t, 200, ts.do("PATCH", "/api/games/1", `{"winner":"draw"}`).status)

	r := ts.do("PATCH", "/api/games/1", `{"winner":null}`)
	require.Equal(t, 200, r.status, string(r.body))
	assert.Nil(t, decode[domain.Game](t, r).Data.Winner)

	r = ts.do("PATCH", "/api/games/1", `{"current_player":"O"}`)
	assert.Equal(t, 400, r.status)
	golden(t, "update_no_fields", r)
}

func TestListByStatus(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		require.Equal(t, 200, ts.do("POST", "/api/games", `{}`).status)
	}
	require.Equal(t, 200, ts.do("POST", "/api/games/3/moves", `{"position":2,"player":"X"}`).status)
	require.Equal(t, 200, ts.do("PATCH", "/api/games/2", `{"status":"completed"}`).status)

	r := ts.do("GET", "/api/games?status=in_progress", "")
	require.Equal(t, 200, r.status)
	items := decode[[]domain.GameListItem](t, r).Data
	require.Len(t, items, 2)
	assert.EqualValues(t, 3, items[0].ID)
	assert.EqualValues(t, 1, items[0].MoveCount)
	assert.EqualValues(t, 1, items[1].ID)
	assert.Zero(t, items[1].MoveCount)

	r = ts.do("GET", "/api/games?status=paused", "")
	assert.Equal(t, 400, r.status)
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	r := ts.do("POST", "/api/games", `{"board_size":11}`)
	assert.Equal(t, 400, r.status)
	golden(t, "create_bad_board_size", r)

	r = ts.do("GET", "/api/games/abc", "")
	assert.Equal(t, 400, r.status)
	golden(t, "bad_game_id", r)

	r = ts.do("POST", "/api/games", `{"board_size":`)
	assert.Equal(t, 400, r.status)

	require.Equal(t, 200, ts.do("POST", "/api/games", "").status)
	r = ts.do("POST", "/api/games/1/moves", `{"position":-1,"player":"X"}`)
	assert.Equal(t, 400, r.status)
	golden(t, "move_bad_position", r)

	r = ts.do("POST", "/api/games/1/moves", `{"position":1,"player":"Z"}`)
	assert.Equal(t, 400, r.status)
}

func TestRoutingAndCORS(t *testing.T) {
	ts := newTestServer(t)

	r := ts.do("GET", "/api/nothing", "")
	assert.Equal(t, 404, r.status)
	golden(t, "route_not_found", r)

	r = ts.do("GET", "/api/games/1/board", "")
	assert.Equal(t, 404, r.status)

	r = ts.do("PUT", "/api/games", "")
	assert.Equal(t, 405, r.status)
	assert.ElementsMatch(t, []string{"GET", "POST", "OPTIONS"}, strings.Split(r.headers["Allow"], ", "))
	var fail gamedto.Envelope
	require.NoError(t, json.Unmarshal(r.body, &fail))
	require.NotNil(t, fail.Error)
	assert.Equal(t, 405, fail.Error.StatusCode)

	r = ts.do("OPTIONS", "/api/games/1", "",
		"Origin", "http://localhost:5173",
		"Access-Control-Request-Method", "PATCH",
	)
	assert.Equal(t, 200, r.status)
	assert.Equal(t, "http://localhost:5173", r.headers["Access-Control-Allow-Origin"])

	r = ts.do("OPTIONS", "/api/games/1", "",
		"Origin", "http://evil.test",
		"Access-Control-Request-Method", "PATCH",
	)
	assert.Empty(t, r.headers["Access-Control-Allow-Origin"])

	r = ts.do("GET", "/healthz", "", "Origin", "http://localhost:5173")
	assert.Equal(t, "http://localhost:5173", r.headers["Access-Control-Allow-Origin"])

	r = ts.do("GET", "/healthz", "", "Origin", "http://evil.test", "X-Request-Id", "abc-123")
	assert.Equal(t, 200, r.status)
	assert.Empty(t, r.headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "abc-123", r.headers["X-Request-Id"])

	r = ts.do("GET", "/healthz", "")
	assert.Len(t, r.headers["X-Request-Id"], 36)
}

func TestDocs(t *testing.T) {
	ts := newTestServer(t)

	r := ts.do("GET", "/", "")
	assert.Equal(t, 302, r.status)
	assert.True(t, strings.HasSuffix(r.headers["Location"], "/api-docs"), r.headers["Location"])

	r = ts.do("GET", "/api-docs", "")
	require.Equal(t, 200, r.status)
	assert.Contains(t, string(r.body), "/api-docs/openapi.yaml")

	r = ts.do("GET", "/api-docs/openapi.yaml", "")
	require.Equal(t, 200, r.status)
	assert.Equal(t, "application/yaml", r.headers["Content-Type"])
}

// Every routed endpoint is documented, and nothing undocumented is routed.
func TestOpenAPIMatchesRoutes(t *testing.T) {
	var doc struct {
		Paths map[string]map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(openAPIDoc, &doc))

	documented := map[string]bool{}
	for path, item := range doc.Paths {
		for key := range item {
			switch key {
			case "get", "post", "patch", "delete", "put":
				documented[strings.ToUpper(key)+" "+path] = true
			}
		}
	}
	routed := map[string]bool{}
	for _, rt := range (&Server{}).apiRoutes() {
		routed[rt.method+" "+rt.path] = true
	}
	assert.Equal(t, routed, documented)
}

type panickingGames struct{ GameService }

func (panickingGames) Get(context.Context, int64) (*domain.Game, error) { panic("boom") }

func TestHandlerPanicBecomes500(t *testing.T) {
	ts := serveGames(t, panickingGames{})

	r := ts.do("GET", "/api/games/1", "")
	assert.Equal(t, 500, r.status)
	assert.JSONEq(t, `{"success":false,"error":{"message":"Internal server error","status_code":500}}`, string(r.body))
	assert.NotEmpty(t, r.headers["X-Request-Id"])
}
