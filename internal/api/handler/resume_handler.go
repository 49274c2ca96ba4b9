package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/extractor"
	"resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/processor"
	"resume-ingest-go/internal/storage"
	"resume-ingest-go/internal/storage/models"
	"resume-ingest-go/internal/types"
	"resume-ingest-go/internal/utils"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
)

var (
	// ErrFileTooLarge 超过 server.max_upload_mb
	ErrFileTooLarge = errors.New("文件超过大小限制")
	// ErrEmptyFile 上传内容为空
	ErrEmptyFile = errors.New("文件内容为空")
)

// 上传状态
const (
	StatusSubmitted        = "SUBMITTED_FOR_PROCESSING"
	StatusDuplicateSkipped = "DUPLICATE_FILE_SKIPPED"
)

// DedupStore 原始文件MD5去重
type DedupStore interface {
	CheckAndAddRawFileMD5(ctx context.Context, md5Hex string) (bool, error)
	RemoveRawFileMD5(ctx context.Context, md5Hex string) error
	RememberSubmission(ctx context.Context, md5Hex, submissionUUID string) error
	SubmissionForMD5(ctx context.Context, md5Hex string) (string, error)
	EnsureMD5SetExpiry(ctx context.Context) (bool, error)
}

// FileStore 原始文件上传与回滚
type FileStore interface {
	UploadResumeFile(ctx context.Context, submissionUUID, fileExt string, reader io.Reader, fileSize int64) (string, error)
	DeleteResumeFile(ctx context.Context, objectKey string) error
}

// UploadQueue 上传消息队列
type UploadQueue interface {
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
	StartConsumer(ctx context.Context, queueName string, prefetchCount int, handler storage.MessageHandler) (<-chan struct{}, error)
}

// UploadIngester 处理一条上传消息
type UploadIngester interface {
	ProcessUploadedResume(ctx context.Context, msg storage.ResumeUploadMessage) (*processor.IngestOutcome, error)
}

// FailedUploadLister 查询失败上传记录
type FailedUploadLister interface {
	ListFailedUploads(ctx context.Context, uploaderID string, limit int) ([]models.FailedUpload, error)
}

// HealthChecker 各依赖组件的连接状态
type HealthChecker interface {
	Ping(ctx context.Context) map[string]error
}

// Deps 处理器依赖，未使用的接口可以为空
type Deps struct {
	Dedup     DedupStore
	Files     FileStore
	Queue     UploadQueue
	Processor processor.DocumentProcessor
	Ingest    UploadIngester
	Failures  FailedUploadLister
	Health    HealthChecker
}

// DepsFromStorage 用存储管理器填充依赖
func DepsFromStorage(s *storage.Storage, proc processor.DocumentProcessor, ingest UploadIngester) Deps {
	d := Deps{Processor: proc, Ingest: ingest, Health: s}
	if s.Redis != nil {
		d.Dedup = s.Redis
	}
	if s.MinIO != nil {
		d.Files = s.MinIO
	}
	if s.RabbitMQ != nil {
		d.Queue = s.RabbitMQ
	}
	if s.MySQL != nil {
		d.Failures = s.MySQL
	}
	return d
}

// ResumeHandler 简历处理器，负责协调简历的上传、同步解析和入库消费
type ResumeHandler struct {
	cfg    *config.Config
	deps   Deps
	logger zerolog.Logger

	consumersMu sync.Mutex
	consumers   []<-chan struct{}
}

// NewResumeHandler 创建一个新的简历处理器
func NewResumeHandler(cfg *config.Config, deps Deps) *ResumeHandler {
	return &ResumeHandler{
		cfg:    cfg,
		deps:   deps,
		logger: logger.Logger.With().Str("component", "resume_handler").Logger(),
	}
}

// UploadRequest 上传请求
type UploadRequest struct {
	Reader         io.Reader
	FileSize       int64
	FileName       string
	VacancyID      string
	UploaderID     string
	DeclaredSource string
	IsHTML         bool
}

// ResumeUploadResponse 简历上传响应
type ResumeUploadResponse struct {
	SubmissionUUID string `json:"submission_uuid"`
	Status         string `json:"status"`
}

// UploadRejectedError 文件在入队前就被拒绝
type UploadRejectedError struct {
	Err     error
	Message string // 展示给上传人的文案
}

func (e *UploadRejectedError) Error() string { return e.Err.Error() }
func (e *UploadRejectedError) Unwrap() error { return e.Err }

func (h *ResumeHandler) maxUploadBytes() int64 {
	mb := h.cfg.Server.MaxUploadMB
	if mb <= 0 {
		mb = 20
	}
	return int64(mb) << 20
}

// HandleResumeUpload 处理简历上传：去重、存储原始文件、发布到上传队列
func (h *ResumeHandler) HandleResumeUpload(ctx context.Context, req UploadRequest) (*ResumeUploadResponse, error) {
	if h.deps.Dedup == nil || h.deps.Files == nil || h.deps.Queue == nil {
		return nil, processor.ErrStorageNotInit
	}

	limit := h.maxUploadBytes()
	if req.FileSize > limit {
		return nil, &UploadRejectedError{Err: ErrFileTooLarge, Message: processor.MsgCannotProcessFile}
	}

	// reader只能读一次，先读入内存计算MD5
	fileBytes, err := io.ReadAll(io.LimitReader(req.Reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("读取上传文件内容失败: %w", err)
	}
	if int64(len(fileBytes)) > limit {
		return nil, &UploadRejectedError{Err: ErrFileTooLarge, Message: processor.MsgCannotProcessFile}
	}
	if len(fileBytes) == 0 {
		return nil, &UploadRejectedError{Err: ErrEmptyFile, Message: processor.MsgCannotProcessFile}
	}

	// 不支持的格式和来源在入队前拒绝
	if _, err := extractor.Detect(types.RawDocument{
		FileName:       req.FileName,
		DeclaredSource: req.DeclaredSource,
		IsHTML:         req.IsHTML,
	}); err != nil {
		return nil, &UploadRejectedError{Err: err, Message: processor.MsgCannotProcessFile}
	}

	log := h.logger.With().Str("filename", req.FileName).Logger()
	fileMD5Hex := utils.CalculateMD5(fileBytes)

	exists, err := h.deps.Dedup.CheckAndAddRawFileMD5(ctx, fileMD5Hex)
	if err != nil {
		log.Error().Err(err).Str("md5", fileMD5Hex).Msg("检查文件MD5失败")
		return nil, fmt.Errorf("检查文件MD5重复性失败: %w", err)
	}
	if exists {
		existing, lookupErr := h.deps.Dedup.SubmissionForMD5(ctx, fileMD5Hex)
		if lookupErr != nil {
			log.Warn().Err(lookupErr).Str("md5", fileMD5Hex).Msg("查询重复文件的提交UUID失败")
		}
		log.Info().Str("md5", fileMD5Hex).Str("existing_submission", existing).Msg("检测到重复的文件，跳过处理")
		return &ResumeUploadResponse{SubmissionUUID: existing, Status: StatusDuplicateSkipped}, nil
	}

	// 之后任何一步失败都要回滚MD5，允许重新上传
	rollbackMD5 := func() {
		if err := h.deps.Dedup.RemoveRawFileMD5(ctx, fileMD5Hex); err != nil {
			log.Warn().Err(err).Str("md5", fileMD5Hex).Msg("回滚文件MD5失败")
		}
	}

	uuidV7, err := uuid.NewV7()
	if err != nil {
		rollbackMD5()
		return nil, fmt.Errorf("生成UUIDv7失败: %w", err)
	}
	submissionUUID := uuidV7.String()

	objectKey, err := h.deps.Files.UploadResumeFile(ctx, submissionUUID, filepath.Ext(req.FileName), bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		rollbackMD5()
		return nil, fmt.Errorf("上传简历到MinIO失败: %w", err)
	}

	if err := h.deps.Dedup.RememberSubmission(ctx, fileMD5Hex, submissionUUID); err != nil {
		log.Warn().Err(err).Str("md5", fileMD5Hex).Msg("记录MD5对应的提交UUID失败")
	}

	uploaderID := req.UploaderID
	if uploaderID == "" {
		uploaderID = h.cfg.Server.DefaultUploader
	}
	message := storage.ResumeUploadMessage{
		SubmissionUUID:      submissionUUID,
		SubmissionTimestamp: time.Now(),
		OriginalFilename:    req.FileName,
		OriginalFilePathOSS: objectKey,
		DeclaredSource:      req.DeclaredSource,
		IsHTML:              req.IsHTML,
		VacancyID:           req.VacancyID,
		UploaderID:          uploaderID,
		RawFileMD5:          fileMD5Hex,
	}

	if err := h.deps.Queue.PublishJSON(ctx, h.cfg.RabbitMQ.ResumeEventsExchange, h.cfg.RabbitMQ.UploadedRoutingKey, message, true); err != nil {
		if delErr := h.deps.Files.DeleteResumeFile(ctx, objectKey); delErr != nil {
			log.Warn().Err(delErr).Str("object_key", objectKey).Msg("回滚原始文件失败")
		}
		rollbackMD5()
		return nil, fmt.Errorf("发布消息到RabbitMQ失败: %w", err)
	}

	log.Info().Str("submission_uuid", submissionUUID).Str("object_key", objectKey).Msg("简历已提交处理")
	return &ResumeUploadResponse{SubmissionUUID: submissionUUID, Status: StatusSubmitted}, nil
}

// ParseResponse 同步解析结果，不落库
type ParseResponse struct {
	Record     *types.CandidateRecord `json:"record"`
	Validation types.ValidationResult `json:"validation"`
	Eligible   bool                   `json:"eligible"`
	FromCache  bool                   `json:"from_cache"`
}

// HandleParse 同步解析一份简历
func (h *ResumeHandler) HandleParse(ctx context.Context, doc types.RawDocument) (*ParseResponse, error) {
	if h.deps.Processor == nil {
		return nil, processor.ErrProcessorNotInit
	}
	if int64(len(doc.Data)) > h.maxUploadBytes() {
		return nil, &UploadRejectedError{Err: ErrFileTooLarge, Message: processor.MsgCannotProcessFile}
	}
	result, err := h.deps.Processor.Process(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &ParseResponse{
		Record:     result.Record,
		Validation: result.Validation,
		Eligible:   result.Validation.Valid(),
		FromCache:  result.FromCache,
	}, nil
}

// ListFailedUploads 最近的失败上传
func (h *ResumeHandler) ListFailedUploads(ctx context.Context, uploaderID string, limit int) ([]models.FailedUpload, error) {
	if h.deps.Failures == nil {
		return nil, processor.ErrStorageNotInit
	}
	return h.deps.Failures.ListFailedUploads(ctx, uploaderID, limit)
}

// HealthStatus 汇总依赖状态，任一组件异常时 ok 为 false
func (h *ResumeHandler) HealthStatus(ctx context.Context) (map[string]string, bool) {
	status := map[string]string{}
	ok := true
	if h.deps.Health == nil {
		return status, ok
	}
	for name, err := range h.deps.Health.Ping(ctx) {
		if err != nil {
			status[name] = err.Error()
			ok = false
			continue
		}
		status[name] = "ok"
	}
	return status, ok
}

// handleUploadMessage 消费上传队列中的一条消息，返回false时消息会被重新投递一次
func (h *ResumeHandler) handleUploadMessage(ctx context.Context, body []byte) bool {
	var message storage.ResumeUploadMessage
	if err := json.Unmarshal(body, &message); err != nil {
		// 格式错误的消息重投也无法处理
		h.logger.Error().Err(err).Int("size", len(body)).Msg("解析上传消息失败，丢弃")
		return true
	}

	outcome, err := h.deps.Ingest.ProcessUploadedResume(ctx, message)
	if err != nil {
		h.logger.Error().Err(err).Str("submission_uuid", message.SubmissionUUID).Msg("处理上传消息失败，等待重新投递")
		return false
	}
	if outcome.Failure != nil {
		h.logger.Info().
			Str("submission_uuid", message.SubmissionUUID).
			Str("kind", string(processor.KindOf(outcome.Failure))).
			Msg("简历处理失败，已记录")
	}
	return true
}

// StartResumeUploadConsumer 启动 workers 个上传队列消费者
func (h *ResumeHandler) StartResumeUploadConsumer(ctx context.Context, workers int) error {
	if h.deps.Queue == nil || h.deps.Ingest == nil {
		return processor.ErrStorageNotInit
	}
	if workers <= 0 {
		workers = 1
	}
	prefetch := h.cfg.RabbitMQ.PrefetchCount
	if prefetch <= 0 {
		prefetch = 1
	}

	h.consumersMu.Lock()
	defer h.consumersMu.Unlock()
	for i := 0; i < workers; i++ {
		done, err := h.deps.Queue.StartConsumer(ctx, h.cfg.RabbitMQ.RawResumeQueue, prefetch, h.handleUploadMessage)
		if err != nil {
			return fmt.Errorf("启动第 %d 个上传消费者失败: %w", i+1, err)
		}
		h.consumers = append(h.consumers, done)
	}

	h.logger.Info().
		Str("queue", h.cfg.RabbitMQ.RawResumeQueue).
		Int("workers", workers).
		Int("prefetch", prefetch).
		Msg("简历上传消费者就绪")
	return nil
}

// WaitConsumers 等待所有消费者退出
func (h *ResumeHandler) WaitConsumers() {
	h.consumersMu.Lock()
	consumers := append([]<-chan struct{}(nil), h.consumers...)
	h.consumersMu.Unlock()
	for _, done := range consumers {
		<-done
	}
}

// StartMD5CleanupTask 定期确保MD5集合带有过期时间，阻塞到ctx取消
func (h *ResumeHandler) StartMD5CleanupTask(ctx context.Context, interval time.Duration) {
	if h.deps.Dedup == nil {
		return
	}
	if interval <= 0 {
		interval = 7 * 24 * time.Hour
	}
	h.logger.Info().Dur("interval", interval).Msg("启动MD5记录清理任务")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.cleanupMD5Records(ctx)
	for {
		select {
		case <-ticker.C:
			h.cleanupMD5Records(ctx)
		case <-ctx.Done():
			h.logger.Info().Msg("MD5记录清理任务退出")
			return
		}
	}
}

func (h *ResumeHandler) cleanupMD5Records(ctx context.Context) {
	changed, err := h.deps.Dedup.EnsureMD5SetExpiry(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("检查MD5集合过期时间失败")
		return
	}
	if changed {
		h.logger.Info().Msg("已为MD5集合补充过期时间")
	}
}
