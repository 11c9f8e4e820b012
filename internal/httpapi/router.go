package httpapi

import (
	"fmt"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/tictactoe-server/internal/msgcat"
)

const paramID = "id"

type route struct {
	method  string
	path    string
	handler fasthttp.RequestHandler
}

// apiRoutes is every documented endpoint; openapi.yaml lists the same set.
func (s *Server) apiRoutes() []route {
	return []route{
		{fasthttp.MethodGet, "/healthz", s.handleHealth},
		{fasthttp.MethodGet, "/api/games", s.handleList},
		{fasthttp.MethodPost, "/api/games", s.handleCreate},
		{fasthttp.MethodGet, "/api/games/{id}", s.handleGet},
		{fasthttp.MethodPatch, "/api/games/{id}", s.handleUpdate},
		{fasthttp.MethodDelete, "/api/games/{id}", s.handleDelete},
		{fasthttp.MethodGet, "/api/games/{id}/full", s.handleGetFull},
		{fasthttp.MethodGet, "/api/games/{id}/moves", s.handleListMoves},
		{fasthttp.MethodPost, "/api/games/{id}/moves", s.handleAddMove},
	}
}

func (s *Server) newRouter() *router.Router {
	r := router.New()
	for _, rt := range s.apiRoutes() {
		r.Handle(rt.method, rt.path, rt.handler)
	}
	r.GET("/", s.handleRoot)
	r.GET("/api-docs", s.handleDocsUI)
	r.GET("/api-docs/openapi.yaml", s.handleDocsSpec)

	r.NotFound = s.notFound
	r.MethodNotAllowed = s.methodNotAllowed
	r.PanicHandler = s.recoverPanic
	return r
}

// pathID returns the {id} segment captured by the router.
func pathID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue(paramID).(string)
	return id
}

func (s *Server) notFound(ctx *fasthttp.RequestCtx) {
	s.writeFailure(ctx, fasthttp.StatusNotFound, s.msgs.Text(msgcat.RouteNotFound, nil, "Route not found"))
}

// methodNotAllowed runs after the router has already set the Allow header.
func (s *Server) methodNotAllowed(ctx *fasthttp.RequestCtx) {
	msg := s.msgs.Text(msgcat.MethodNotAllowed, map[string]string{
		"Method": string(ctx.Method()),
		"Path":   string(ctx.Path()),
	}, "Method not allowed")
	s.writeFailure(ctx, fasthttp.StatusMethodNotAllowed, msg)
}

func (s *Server) recoverPanic(ctx *fasthttp.RequestCtx, r any) {
	s.logger.Error("http_panic",
		zap.String("request_id", requestID(ctx)),
		zap.String("panic", fmt.Sprint(r)),
	)
	ctx.ResetBody()
	s.writeFailure(ctx, fasthttp.StatusInternalServerError, s.msgs.Text(msgcat.InternalError, nil, "Internal server error"))
}
