// Package httpapi exposes the game engine as a JSON resource API on fasthttp.
package httpapi

import (
	"context"
	"net"
	"time"

	"github.com/AdhityaRamadhanus/fasthttpcors"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/tictactoe-server/internal/domain"
	"github.com/park285/tictactoe-server/internal/game"
	"github.com/park285/tictactoe-server/internal/msgcat"
)

// GameService is the part of the engine the handlers call.
type GameService interface {
	Create(ctx context.Context, boardSize int64) (*domain.Game, error)
	Get(ctx context.Context, id int64) (*domain.Game, error)
	GetWithMoves(ctx context.Context, id int64) (*domain.GameWithMoves, error)
	List(ctx context.Context, f game.Filters) ([]domain.GameListItem, error)
	Update(ctx context.Context, id int64, u game.Update) (*domain.Game, error)
	Delete(ctx context.Context, id int64) error
	AddMove(ctx context.Context, gameID, position int64, player domain.Player) (*domain.GameMove, error)
	ListMoves(ctx context.Context, gameID int64) ([]domain.GameMove, error)
}

type Options struct {
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodySize  int
}

type Server struct {
	games  GameService
	msgs   *msgcat.Catalog
	logger *zap.Logger
	cors   *fasthttpcors.CorsHandler
	router *router.Router
	srv    *fasthttp.Server
}

func New(games GameService, msgs *msgcat.Catalog, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 15 * time.Second
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = 64 << 10
	}
	s := &Server{
		games:  games,
		msgs:   msgs,
		logger: logger,
		cors:   newCORS(opts.CORSOrigins),
	}
	s.router = s.newRouter()
	s.srv = &fasthttp.Server{
		Name:                  "tictactoe-server",
		Handler:               s.Handler(),
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		MaxRequestBodySize:    opts.MaxBodySize,
		NoDefaultServerHeader: true,
		CloseOnShutdown:       true,
	}
	return s
}

// Handler is the full middleware chain around the router. CORS answers
// every OPTIONS request itself; handler panics are recovered by the router.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.withRequestID(s.withAccessLog(s.cors.CorsMiddleware(s.router.Handler)))
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Serve(ln net.Listener) error { return s.srv.Serve(ln) }

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}
