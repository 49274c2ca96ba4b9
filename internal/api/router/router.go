package router

import (
	"context"
	"errors"
	"io"
	"strconv"

	"resume-ingest-go/internal/api/handler"
	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/processor"
	"resume-ingest-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
)

// NewServer 创建带链路追踪的Hertz服务器
func NewServer(cfg *config.Config, opts ...hertzconfig.Option) *server.Hertz {
	tracer, tracerCfg := hertztracing.NewServerTracer()
	maxBody := cfg.Server.MaxUploadMB
	if maxBody <= 0 {
		maxBody = 20
	}
	opts = append([]hertzconfig.Option{
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		// multipart表单比文件本身略大
		server.WithMaxRequestBodySize((maxBody + 1) << 20),
		tracer,
	}, opts...)

	h := server.New(opts...)
	h.Use(hertztracing.ServerMiddleware(tracerCfg), RequestID(), AccessLog())
	return h
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, serverCfg config.ServerConfig) {
	// 健康检查不需要鉴权
	h.GET("/api/v1/health", func(c context.Context, ctx *app.RequestContext) {
		components, ok := resumeHandler.HealthStatus(c)
		status, code := "ok", consts.StatusOK
		if !ok {
			status, code = "degraded", consts.StatusServiceUnavailable
		}
		ctx.JSON(code, utils.H{"status": status, "components": components})
	})

	api := h.Group("/api/v1", APIKeyAuth(serverCfg.APIKeys)...)

	api.POST("/resume/upload", func(c context.Context, ctx *app.RequestContext) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
			return
		}
		defer file.Close()

		resp, err := resumeHandler.HandleResumeUpload(c, handler.UploadRequest{
			Reader:         file,
			FileSize:       fileHeader.Size,
			FileName:       fileHeader.Filename,
			VacancyID:      ctx.PostForm("vacancy_id"),
			UploaderID:     ctx.PostForm("uploader_id"),
			DeclaredSource: ctx.PostForm("source"),
			IsHTML:         formBool(ctx.PostForm("is_html")),
		})
		if err != nil {
			writeError(ctx, err)
			return
		}

		code := consts.StatusAccepted
		if resp.Status == handler.StatusDuplicateSkipped {
			code = consts.StatusOK
		}
		ctx.JSON(code, resp)
	})

	api.POST("/resume/parse", func(c context.Context, ctx *app.RequestContext) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件失败"})
			return
		}

		resp, err := resumeHandler.HandleParse(c, types.RawDocument{
			Data:           data,
			FileName:       fileHeader.Filename,
			DeclaredSource: ctx.PostForm("source"),
			IsHTML:         formBool(ctx.PostForm("is_html")),
		})
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/resume/failed", func(c context.Context, ctx *app.RequestContext) {
		limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
		rows, err := resumeHandler.ListFailedUploads(c, ctx.Query("uploader_id"), limit)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"items": rows, "count": len(rows)})
	})
}

func formBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

// writeError 按错误类型返回状态码，message 为展示给上传人的文案
func writeError(ctx *app.RequestContext, err error) {
	var rejected *handler.UploadRejectedError
	switch {
	case errors.As(err, &rejected):
		code := consts.StatusUnsupportedMediaType
		if errors.Is(err, handler.ErrFileTooLarge) {
			code = consts.StatusRequestEntityTooLarge
		} else if errors.Is(err, handler.ErrEmptyFile) {
			code = consts.StatusBadRequest
		}
		ctx.JSON(code, utils.H{"error": err.Error(), "message": rejected.Message})
	case errors.Is(err, processor.ErrStorageNotInit), errors.Is(err, processor.ErrProcessorNotInit):
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": err.Error()})
	default:
		var procErr *processor.ResumeProcessError
		if errors.As(err, &procErr) {
			code := consts.StatusUnprocessableEntity
			if processor.KindOf(err) == processor.KindTimeout {
				code = consts.StatusGatewayTimeout
			}
			ctx.JSON(code, utils.H{
				"error":   err.Error(),
				"kind":    string(processor.KindOf(err)),
				"message": processor.UserMessage(err),
			})
			return
		}
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
	}
}
