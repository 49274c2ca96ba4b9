package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType span上 error.type 属性的取值
type ErrorType string

const (
	ErrorTypeHTTP          ErrorType = "http"
	ErrorTypeDB            ErrorType = "db"
	ErrorTypeRedis         ErrorType = "redis"
	ErrorTypeRabbitMQ      ErrorType = "rabbitmq"
	ErrorTypeObjectStorage ErrorType = "object_storage"
	ErrorTypeParse         ErrorType = "parse"
	ErrorTypeValidation    ErrorType = "validation" // 格式或来源不支持、无解析器匹配
	ErrorTypeInternal      ErrorType = "internal"
	ErrorTypeExternal      ErrorType = "external_system" // Tika等外部服务
	ErrorTypeTimeout       ErrorType = "timeout"
)

// RecordError 在span上记录错误并置为Error状态
func RecordError(span trace.Span, err error, errorType ErrorType) {
	RecordErrorWithInfo(span, err, errorType)
}

// RecordErrorWithInfo 同 RecordError，并附加额外属性
func RecordErrorWithInfo(span trace.Span, err error, errorType ErrorType, attrs ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}
	markError(span, err.Error(), errorType, attrs...)
	span.RecordError(err)
}

// RecordHTTPError 记录下游HTTP调用的错误状态码
func RecordHTTPError(span trace.Span, err error, statusCode int) {
	if span == nil || err == nil {
		return
	}
	category := "unknown"
	if statusCode >= 500 {
		category = "server_error"
	} else if statusCode >= 400 {
		category = "client_error"
	}
	span.RecordError(err)
	markError(span, err.Error(), ErrorTypeHTTP,
		attribute.Int("http.status_code", statusCode),
		attribute.String("error.category", category),
	)
}

// RecordRabbitMQNack 记录消费失败被拒绝的消息
func RecordRabbitMQNack(span trace.Span, messageID string, reason string) {
	if span == nil {
		return
	}
	if reason == "" {
		reason = "message rejected by consumer"
	}
	markError(span, reason, ErrorTypeRabbitMQ,
		attribute.String("messaging.message_id", messageID),
		attribute.String("messaging.error_type", "nack"),
	)
}

func markError(span trace.Span, msg string, errorType ErrorType, attrs ...attribute.KeyValue) {
	span.SetAttributes(
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(msg, DefaultMaxLength)),
	)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	span.SetStatus(codes.Error, msg)
}
