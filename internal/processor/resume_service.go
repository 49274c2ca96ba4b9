package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resume-ingest-go/internal/constants"
	"resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/storage"
	"resume-ingest-go/internal/tracing"
	"resume-ingest-go/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrStorageNotInit   = errors.New("存储未初始化")
	ErrProcessorNotInit = errors.New("处理器未初始化")
)

// IngestDeps 入库流程需要的外部依赖
type IngestDeps struct {
	Processor   DocumentProcessor
	Files       OriginalFileStore
	Repository  ResumeRepository
	Failures    FailedUploadReporter
	Invitations InvitationPublisher
	Dedup       UploadDeduplicator // 可选
}

// IngestOutcome 一条上传消息的处理结果
type IngestOutcome struct {
	ResumeID   string
	Eligible   bool
	Validation types.ValidationResult
	Failure    error // 已记录为失败上传的处理错误
}

// IngestService 消费上传消息：下载原始文件、解析、入库、发布邀请资格事件
// 处理失败会落库并通知运营，不再重试
type IngestService struct {
	deps    IngestDeps
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// IngestOption 入库服务选项
type IngestOption func(*IngestService)

// WithIngestLogger 设置日志记录器
func WithIngestLogger(l zerolog.Logger) IngestOption {
	return func(s *IngestService) {
		s.logger = l
	}
}

// WithIngestTimeout 设置单份简历的处理超时
func WithIngestTimeout(d time.Duration) IngestOption {
	return func(s *IngestService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithIngestClock 测试中替换时钟
func WithIngestClock(now func() time.Time) IngestOption {
	return func(s *IngestService) {
		s.now = now
	}
}

// NewIngestService 创建入库服务
func NewIngestService(deps IngestDeps, opts ...IngestOption) (*IngestService, error) {
	if deps.Processor == nil {
		return nil, ErrProcessorNotInit
	}
	if deps.Files == nil || deps.Repository == nil || deps.Failures == nil || deps.Invitations == nil {
		return nil, ErrStorageNotInit
	}
	s := &IngestService{
		deps:    deps,
		timeout: 90 * time.Second,
		now:     time.Now,
		logger:  logger.Logger.With().Str("component", "ingest_service").Logger(),
	}
	if rp, ok := deps.Processor.(*ResumeProcessor); ok {
		s.timeout = rp.Config.DocumentTimeout
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ProcessUploadedResume 处理一条上传消息
// 返回的 error 只表示失败本身无法记录，调用方应重新投递消息；
// 解析失败已通过 FailedUploadReporter 记录，体现在 IngestOutcome.Failure 中
func (s *IngestService) ProcessUploadedResume(ctx context.Context, msg storage.ResumeUploadMessage) (*IngestOutcome, error) {
	ctx, span := tracer.Start(ctx, "IngestService.ProcessUploadedResume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("submission_uuid", msg.SubmissionUUID),
			attribute.String("resume.file_name", tracing.TruncateString(msg.OriginalFilename, tracing.DefaultMaxLength)),
			attribute.String("resume.declared_source", msg.DeclaredSource),
		),
	)
	defer span.End()

	ctx = logger.WithSubmissionUUID(s.logger.WithContext(ctx), msg.SubmissionUUID)
	log := logger.FromContext(ctx)
	log.Debug().Str("object_key", msg.OriginalFilePathOSS).Msg("开始处理上传的简历")

	data, err := s.deps.Files.GetResumeFile(ctx, msg.OriginalFilePathOSS)
	if err != nil {
		return s.fail(ctx, span, msg, NewDownloadError(msg.OriginalFilename, err.Error()))
	}
	span.SetAttributes(attribute.Int("resume.size_bytes", len(data)))

	processCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := s.deps.Processor.Process(processCtx, types.RawDocument{
		Data:           data,
		FileName:       msg.OriginalFilename,
		DeclaredSource: msg.DeclaredSource,
		IsHTML:         msg.IsHTML,
	})
	if err != nil && errors.Is(processCtx.Err(), context.DeadlineExceeded) {
		err = &ResumeProcessError{FileName: msg.OriginalFilename, Op: "process", BaseErr: context.DeadlineExceeded, Detail: err.Error()}
	}
	cancel()
	if err != nil {
		return s.fail(ctx, span, msg, err)
	}

	resumeID, err := s.deps.Repository.SaveResume(ctx, result.Record, msg.VacancyID, msg.UploaderID)
	if err != nil {
		return s.fail(ctx, span, msg, NewDatabaseError(msg.OriginalFilename, err.Error()))
	}

	outcome := &IngestOutcome{
		ResumeID:   resumeID,
		Eligible:   result.Validation.Valid(),
		Validation: result.Validation,
	}

	event := storage.InvitationEligibilityMessage{
		ResumeID:       resumeID,
		SubmissionUUID: msg.SubmissionUUID,
		VacancyID:      msg.VacancyID,
		FirstName:      types.Deref(result.Record.FirstName),
		Phone:          types.Deref(result.Record.Phone),
		Email:          types.Deref(result.Record.Email),
		PhoneValid:     result.Validation.PhoneValid,
		EmailValid:     result.Validation.EmailValid,
		Eligible:       outcome.Eligible,
		Message:        result.Validation.Message,
		ParsedAt:       s.now(),
	}
	if err := s.deps.Invitations.PublishInvitationEligibility(ctx, event); err != nil {
		// 简历已入库，只记录错误
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		log.Error().Err(err).Str("resume_id", resumeID).Msg("发布邀请资格事件失败")
	}

	span.SetAttributes(
		attribute.String("resume.id", resumeID),
		attribute.Bool("resume.eligible", outcome.Eligible),
	)
	span.SetStatus(codes.Ok, "处理成功")
	log.Info().
		Str("resume_id", resumeID).
		Str("source", string(result.Record.SourceSite)).
		Bool("eligible", outcome.Eligible).
		Bool("from_cache", result.FromCache).
		Msg("简历入库完成")
	return outcome, nil
}

// fail 记录失败上传并回滚原始文件MD5，使同一文件可以重新上传
func (s *IngestService) fail(ctx context.Context, span trace.Span, msg storage.ResumeUploadMessage, procErr error) (*IngestOutcome, error) {
	log := logger.FromContext(ctx)
	kind := KindOf(procErr)

	errType := tracing.ErrorTypeInternal
	switch kind {
	case KindUnsupportedFormat, KindUnsupportedSource, KindNoParserMatched:
		errType = tracing.ErrorTypeValidation
	case KindExtraction, KindDownload:
		errType = tracing.ErrorTypeExternal
	case KindDatabase:
		errType = tracing.ErrorTypeDB
	case KindTimeout:
		errType = tracing.ErrorTypeTimeout
	}
	tracing.RecordErrorWithInfo(span, procErr, errType,
		attribute.String("resume.error_kind", string(kind)),
		attribute.String("resume.file_name", tracing.SafeAttributeValue("file_name", msg.OriginalFilename, tracing.MaxHeaderLength)),
	)
	log.Warn().Err(procErr).Str("kind", string(kind)).Msg("简历处理失败")

	notice := storage.FailedUploadNotice{
		SubmissionUUID:   msg.SubmissionUUID,
		OriginalFilename: msg.OriginalFilename,
		ObjectKey:        msg.OriginalFilePathOSS,
		DeclaredSource:   msg.DeclaredSource,
		IsHTML:           msg.IsHTML,
		VacancyID:        msg.VacancyID,
		UploaderID:       msg.UploaderID,
		ErrorKind:        string(kind),
		UserMessage:      UserMessage(procErr),
		Detail:           truncateDetail(procErr.Error()),
		OccurredAt:       s.now(),
	}
	if err := s.deps.Failures.ReportFailedUpload(ctx, notice); err != nil {
		log.Error().Err(err).Msg("记录失败上传出错")
		return nil, fmt.Errorf("记录失败上传: %w", err)
	}

	if s.deps.Dedup != nil && msg.RawFileMD5 != "" {
		if err := s.deps.Dedup.RemoveRawFileMD5(ctx, msg.RawFileMD5); err != nil {
			log.Warn().Err(err).Str("md5", msg.RawFileMD5).Msg("回滚文件MD5失败，同一文件将无法重新上传")
		}
	}

	return &IngestOutcome{Failure: procErr}, nil
}

func truncateDetail(s string) string {
	return tracing.TruncateString(strings.TrimSpace(s), constants.FailedDetailMaxLen)
}
