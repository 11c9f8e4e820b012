package httpapi

import (
	"bytes"
	"encoding/json"

	"github.com/valyala/fasthttp"

	"github.com/park285/tictactoe-server/internal/apperr"
	"github.com/park285/tictactoe-server/internal/msgcat"
	"github.com/park285/tictactoe-server/internal/validate"
	"github.com/park285/tictactoe-server/pkg/gamedto"
)

// decodeBody reads a JSON object; an empty body decodes as {}.
func (s *Server) decodeBody(ctx *fasthttp.RequestCtx, dst any) error {
	body := bytes.TrimSpace(ctx.PostBody())
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Invalid("%s", s.msgs.Text(msgcat.InvalidBody, map[string]string{"Detail": err.Error()}, "Invalid request body"))
	}
	return nil
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	ok(s, ctx, map[string]string{"status": "ok"}, "")
}

func (s *Server) handleCreate(ctx *fasthttp.RequestCtx) {
	var req gamedto.CreateGameRequest
	if err := s.decodeBody(ctx, &req); err != nil {
		s.writeError(ctx, err)
		return
	}
	size, err := validate.CreateRequest(req)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	g, err := s.games.Create(ctx, size)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ok(s, ctx, g, msgcat.GameCreated)
}

func (s *Server) handleList(ctx *fasthttp.RequestCtx) {
	filters, err := validate.ListQuery(string(ctx.QueryArgs().Peek("status")))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	items, err := s.games.List(ctx, filters)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ok(s, ctx, items, "")
}

func (s *Server) handleGet(ctx *fasthttp.RequestCtx) {
	id, err := validate.ParseGameID(pathID(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	g, err := s.games.Get(ctx, id)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ok(s, ctx, g, "")
}

func (s *Server) handleGetFull(ctx *fasthttp.RequestCtx) {
	id, err := validate.ParseGameID(pathID(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	g, err := s.games.GetWithMoves(ctx, id)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ok(s, ctx, g, "")
}

func (s *Server) handleUpdate(ctx *fasthttp.RequestCtx) {
	id, err := validate.ParseGameID(pathID(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	var req gamedto.UpdateGameRequest
	if err := s.decodeBody(ctx, &req); err != nil {
		s.writeError(ctx, err)
		return
	}
	id, update, err := validate.UpdateRequest(id, req)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	g, err := s.games.Update(ctx, id, update)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ok(s, ctx, g, msgcat.GameUpdated)
}

func (s *Server) handleDelete(ctx *fasthttp.RequestCtx) {
	id, err := validate.ParseGameID(pathID(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	if err := s.games.Delete(ctx, id); err != nil {
		s.writeError(ctx, err)
		return
	}
	ok[any](s, ctx, nil, msgcat.GameDeleted)
}

func (s *Server) handleAddMove(ctx *fasthttp.RequestCtx) {
	id, err := validate.ParseGameID(pathID(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	var req gamedto.MoveRequest
	if err := s.decodeBody(ctx, &req); err != nil {
		s.writeError(ctx, err)
		return
	}
	gameID, position, player, err := validate.MoveRequest(id, req)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	mv, err := s.games.AddMove(ctx, gameID, position, player)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ok(s, ctx, mv, msgcat.MoveAdded)
}

func (s *Server) handleListMoves(ctx *fasthttp.RequestCtx) {
	id, err := validate.ParseGameID(pathID(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	moves, err := s.games.ListMoves(ctx, id)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ok(s, ctx, moves, "")
}
