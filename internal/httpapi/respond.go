package httpapi

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/tictactoe-server/internal/apperr"
	"github.com/park285/tictactoe-server/internal/msgcat"
	"github.com/park285/tictactoe-server/pkg/gamedto"
)

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("http_encode_failed", zap.String("request_id", requestID(ctx)), zap.Error(err))
		status = fasthttp.StatusInternalServerError
		raw, _ = json.Marshal(gamedto.Fail(status, s.msgs.Text(msgcat.InternalError, nil, "Internal server error")))
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}

func ok[T any](s *Server, ctx *fasthttp.RequestCtx, data T, messageKey string) {
	msg := ""
	if messageKey != "" {
		msg = s.msgs.Text(messageKey, nil, "")
	}
	s.writeJSON(ctx, fasthttp.StatusOK, gamedto.OK(data, msg))
}

func (s *Server) writeFailure(ctx *fasthttp.RequestCtx, status int, message string) {
	s.writeJSON(ctx, status, gamedto.Fail(status, message))
}

// writeError renders any engine or validator error into the error envelope.
func (s *Server) writeError(ctx *fasthttp.RequestCtx, err error) {
	ae := apperr.As(err)
	status := ae.HTTPStatus()
	if status >= fasthttp.StatusInternalServerError {
		s.logger.Error("http_handler_failed",
			zap.String("request_id", requestID(ctx)),
			zap.Stringer("kind", ae.Kind),
			zap.Error(err),
		)
	}
	s.writeFailure(ctx, status, ae.Error())
}
