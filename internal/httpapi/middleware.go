package httpapi

import (
	"strings"
	"time"

	"github.com/AdhityaRamadhanus/fasthttpcors"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	headerRequestID = "X-Request-Id"
	userRequestID   = "request_id"
)

var (
	corsMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Content-Type", "Authorization"}
)

func newCORS(origins []string) *fasthttpcors.CorsHandler {
	return fasthttpcors.NewCorsHandler(fasthttpcors.Options{
		AllowedOrigins: origins,
		AllowedMethods: corsMethods,
		AllowedHeaders: corsHeaders,
		AllowMaxAge:    600,
	})
}

func (s *Server) withRequestID(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id := strings.TrimSpace(string(ctx.Request.Header.Peek(headerRequestID)))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		ctx.SetUserValue(userRequestID, id)
		ctx.Response.Header.Set(headerRequestID, id)
		next(ctx)
	}
}

func requestID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue(userRequestID).(string)
	return id
}

func (s *Server) withAccessLog(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		status := ctx.Response.StatusCode()
		fields := []zap.Field{
			zap.String("request_id", requestID(ctx)),
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("remote", ctx.RemoteIP().String()),
		}
		if status >= fasthttp.StatusInternalServerError {
			s.logger.Warn("http_request", fields...)
			return
		}
		s.logger.Info("http_request", fields...)
	}
}
