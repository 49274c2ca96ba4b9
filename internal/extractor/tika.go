package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/ratelimit"
	"resume-ingest-go/internal/tracing"
	"resume-ingest-go/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tikaTracer = otel.Tracer("resume-ingest-go/extractor")

// BinaryDecoder 把二进制办公文档或压缩包转换为纯文本
type BinaryDecoder interface {
	DecodeText(ctx context.Context, data []byte, fileName string, docType types.DocumentType) (string, error)
}

// 发送给Tika的Content-Type，未列出的类型交给Tika自动检测
var tikaContentTypes = map[types.DocumentType]string{
	types.DocumentDOC:  "application/msword",
	types.DocumentDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	types.DocumentXLS:  "application/vnd.ms-excel",
	types.DocumentXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	types.DocumentZIP:  "application/zip",
	types.DocumentRAR:  "application/x-rar-compressed",
	types.DocumentRTF:  "application/rtf",
}

// TikaExtractor 基于Apache Tika服务的文本提取器
type TikaExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	// HTTP客户端，可配置超时等参数
	Client *http.Client
	// 压缩包是否逐个提取内部文件（/rmeta/text）
	recursiveArchives bool
	limiter           *ratelimit.TokenBucket
	logger            zerolog.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaExtractor)

// WithTimeout 配置HTTP客户端超时时间
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaExtractor) {
		e.Client.Timeout = timeout
	}
}

// WithTikaLogger 配置日志记录器
func WithTikaLogger(l zerolog.Logger) TikaOption {
	return func(e *TikaExtractor) {
		e.logger = l
	}
}

// WithHTTPClient 替换HTTP客户端
func WithHTTPClient(c *http.Client) TikaOption {
	return func(e *TikaExtractor) {
		e.Client = c
	}
}

// WithRecursiveArchives 配置压缩包是否拼接内部所有文件的文本
func WithRecursiveArchives(enabled bool) TikaOption {
	return func(e *TikaExtractor) {
		e.recursiveArchives = enabled
	}
}

// WithRateLimiter 限制请求Tika的速率，并对可重试的失败退避重试
func WithRateLimiter(limiter *ratelimit.TokenBucket) TikaOption {
	return func(e *TikaExtractor) {
		e.limiter = limiter
	}
}

// TikaOptionsFromConfig 按配置组装超时、压缩包和限流选项
func TikaOptionsFromConfig(cfg config.TikaConfig) []TikaOption {
	opts := []TikaOption{WithRecursiveArchives(cfg.RecursiveArchives)}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(time.Duration(cfg.Timeout)*time.Second))
	}
	if cfg.MaxQPM > 0 {
		opts = append(opts, WithRateLimiter(ratelimit.NewTokenBucket(cfg.MaxQPM, 0).WithRetryPolicy(time.Second, cfg.MaxRetries)))
	}
	return opts
}

// 确保TikaExtractor实现了BinaryDecoder接口
var _ BinaryDecoder = (*TikaExtractor)(nil)

// NewTikaExtractor 创建Tika提取器
func NewTikaExtractor(serverURL string, options ...TikaOption) *TikaExtractor {
	extractor := &TikaExtractor{
		ServerURL:         strings.TrimRight(serverURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		recursiveArchives: true,
		logger:            logger.Logger.With().Str("component", "tika").Logger(),
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor
}

// DecodeText 调用 PUT /tika 获取纯文本
// 压缩包在开启递归时改用 PUT /rmeta/text，按顺序拼接每个内部文件的 X-TIKA:content
func (e *TikaExtractor) DecodeText(ctx context.Context, data []byte, fileName string, docType types.DocumentType) (string, error) {
	startTime := time.Now()
	ctx, span := tikaTracer.Start(ctx, "Tika.DecodeText",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("resume.document_type", string(docType)),
			attribute.Int("resume.size_bytes", len(data)),
		),
	)
	defer span.End()

	var text string
	call := func() error {
		var err error
		text, err = e.request(ctx, span, data, fileName, docType)
		return err
	}

	var err error
	if e.limiter != nil {
		err = e.limiter.RetryWithBackoff(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		if !errors.Is(err, ErrExtraction) {
			err = fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		return "", err
	}

	e.logger.Debug().
		Str("file", fileName).
		Str("doc_type", string(docType)).
		Int("chars", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Tika文本提取完成")

	return text, nil
}

// request 发送一次请求；网络错误和 429/5xx 网关类状态码标记为可重试
func (e *TikaExtractor) request(ctx context.Context, span trace.Span, data []byte, fileName string, docType types.DocumentType) (string, error) {
	rmeta := e.recursiveArchives && (docType == types.DocumentZIP || docType == types.DocumentRAR)
	url := fmt.Sprintf("%s/tika", e.ServerURL)
	accept := "text/plain"
	if rmeta {
		url = fmt.Sprintf("%s/rmeta/text", e.ServerURL)
		accept = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: 创建HTTP请求失败: %v", ErrExtraction, err)
	}

	if ct, ok := tikaContentTypes[docType]; ok {
		req.Header.Set("Content-Type", ct)
	} else {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	req.Header.Set("Accept", accept)
	if fileName != "" {
		req.Header.Set("X-Tika-Resource-Name", fileName)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: 发送请求到Tika服务器失败: %w", ErrExtraction, err)
		}
		return "", fmt.Errorf("%w: %w: 发送请求到Tika服务器失败: %w", ErrExtraction, ratelimit.ErrRetryable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: tika服务器返回错误状态码: %d", ErrExtraction, resp.StatusCode)
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return "", fmt.Errorf("%w: %w", ratelimit.ErrRetryable, err)
		}
		return "", err
	}

	textBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: 读取Tika响应失败: %v", ErrExtraction, err)
	}
	if rmeta {
		return joinRmetaContent(textBytes)
	}
	return string(textBytes), nil
}

// tikaContentKey /rmeta 响应中每个文档正文所在的字段
const tikaContentKey = "X-TIKA:content"

// joinRmetaContent 解析 /rmeta/text 返回的元数据数组，第一个元素是压缩包本身，其后是内部文件
func joinRmetaContent(body []byte) (string, error) {
	var docs []map[string]any
	if err := json.Unmarshal(body, &docs); err != nil {
		return "", fmt.Errorf("%w: 解析Tika rmeta响应失败: %v", ErrExtraction, err)
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		content, _ := doc[tikaContentKey].(string)
		if strings.TrimSpace(content) != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// Ping 检查Tika服务是否可用（GET /tika）
func (e *TikaExtractor) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.ServerURL+"/tika", nil)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return fmt.Errorf("连接Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}
	return nil
}
