package middleware

import (
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request with the request id set by
// requestid.New.
func RequestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		fields := []zap.Field{
			zap.String("request_id", requestid.Get(ctx)),
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", ctx.ClientIP()),
		}
		if actor, ok := ActorFromContext(ctx); ok {
			fields = append(fields, zap.String("user_id", actor.UserID), zap.String("role", string(actor.Role)))
		}

		switch {
		case ctx.Writer.Status() >= 500:
			zap.L().Error("request", fields...)
		case ctx.Writer.Status() >= 400:
			zap.L().Info("request", fields...)
		default:
			zap.L().Debug("request", fields...)
		}
	}
}
