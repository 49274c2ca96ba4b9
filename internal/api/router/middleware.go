package router

import (
	"context"
	"crypto/subtle"
	"time"

	"resume-ingest-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
)

// HeaderRequestID 请求ID头
const HeaderRequestID = "X-Request-ID"

// HeaderAPIKey 鉴权头
const HeaderAPIKey = "X-API-Key"

// RequestID 透传或生成请求ID，并写入响应头
func RequestID() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		id := string(ctx.Request.Header.Peek(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set("request_id", id)
		ctx.Header(HeaderRequestID, id)
		ctx.Next(c)
	}
}

// AccessLog 记录每个请求的方法、路径、状态和耗时
func AccessLog() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		l := logger.FromContext(c)
		l.Info().
			Str("method", string(ctx.Method())).
			Str("path", string(ctx.Path())).
			Int("status", ctx.Response.StatusCode()).
			Str("request_id", ctx.GetString("request_id")).
			Dur("latency", time.Since(start)).
			Msg("HTTP请求")
	}
}

// APIKeyAuth 配置了 api_keys 时校验 X-API-Key，否则不加中间件
func APIKeyAuth(keys []string) []app.HandlerFunc {
	if len(keys) == 0 {
		return nil
	}
	return []app.HandlerFunc{keyauth.New(
		keyauth.WithKeyLookUp("header:"+HeaderAPIKey, ""),
		keyauth.WithValidator(func(_ context.Context, _ *app.RequestContext, key string) (bool, error) {
			return validAPIKey(keys, key), nil
		}),
		keyauth.WithErrorHandler(func(_ context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "无效的API密钥"})
		}),
	)}
}

func validAPIKey(keys []string, key string) bool {
	if key == "" {
		return false
	}
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}
