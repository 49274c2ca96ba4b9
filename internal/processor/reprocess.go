package processor

import (
	"context"
	"fmt"
	"sync"

	"resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/storage"
	"resume-ingest-go/internal/storage/models"
	"resume-ingest-go/internal/types"
	"resume-ingest-go/internal/utils"

	"github.com/rs/zerolog"
)

// RetryableKinds 解析器或外部服务修复后值得重跑的失败类型
var RetryableKinds = []ErrorKind{KindExtraction, KindNoParserMatched, KindDownload, KindDatabase, KindTimeout}

// FailedUploadSource 失败记录的读取和清理
type FailedUploadSource interface {
	ListFailedUploadsByKind(ctx context.Context, kinds []string, limit int) ([]models.FailedUpload, error)
	DeleteFailedUpload(ctx context.Context, id uint64) error
}

// RawFileClaimer 重新登记原始文件MD5，已存在时返回true
type RawFileClaimer interface {
	CheckAndAddRawFileMD5(ctx context.Context, md5Hex string) (bool, error)
}

// UploadIngester 处理一条上传消息
type UploadIngester interface {
	ProcessUploadedResume(ctx context.Context, msg storage.ResumeUploadMessage) (*IngestOutcome, error)
}

// ReprocessSummary 一次重跑的统计
type ReprocessSummary struct {
	Total     int
	Succeeded int
	Failed    int // 再次失败，已写入新的失败记录
	Skipped   int // 同一文件已被重新上传
	Missing   int // 原始文件已不存在
	Errors    int // 基础设施错误，记录保留
	Pending   int // 仅预览模式
}

// Reprocessor 把失败上传重新送入入库流程
type Reprocessor struct {
	source      FailedUploadSource
	files       OriginalFileStore
	ingest      UploadIngester
	claimer     RawFileClaimer // 可选
	concurrency int
	dryRun      bool
	logger      zerolog.Logger
}

// ReprocessOption 重跑选项
type ReprocessOption func(*Reprocessor)

// WithReprocessConcurrency 设置并发数
func WithReprocessConcurrency(n int) ReprocessOption {
	return func(r *Reprocessor) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithDryRun 只统计不处理
func WithDryRun(dryRun bool) ReprocessOption {
	return func(r *Reprocessor) {
		r.dryRun = dryRun
	}
}

// WithRawFileClaimer 重新登记MD5，避免与之后的重复上传冲突
func WithRawFileClaimer(c RawFileClaimer) ReprocessOption {
	return func(r *Reprocessor) {
		r.claimer = c
	}
}

// NewReprocessor 创建重跑器
func NewReprocessor(source FailedUploadSource, files OriginalFileStore, ingest UploadIngester, opts ...ReprocessOption) *Reprocessor {
	r := &Reprocessor{
		source:      source,
		files:       files,
		ingest:      ingest,
		concurrency: 5,
		logger:      logger.Logger.With().Str("component", "reprocessor").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 取出最多limit条指定类型的失败记录并重跑
func (r *Reprocessor) Run(ctx context.Context, kinds []ErrorKind, limit int) (ReprocessSummary, error) {
	var summary ReprocessSummary
	if r.source == nil || r.files == nil || r.ingest == nil {
		return summary, ErrStorageNotInit
	}

	kindNames := make([]string, 0, len(kinds))
	for _, k := range kinds {
		kindNames = append(kindNames, string(k))
	}
	rows, err := r.source.ListFailedUploadsByKind(ctx, kindNames, limit)
	if err != nil {
		return summary, fmt.Errorf("读取失败记录: %w", err)
	}
	summary.Total = len(rows)
	r.logger.Info().Int("count", len(rows)).Strs("kinds", kindNames).Bool("dry_run", r.dryRun).Msg("开始重跑失败上传")

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan models.FailedUpload)
	)
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range jobs {
				result := r.reprocessOne(ctx, row)
				mu.Lock()
				summary.add(result)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, row := range rows {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- row:
		}
	}
	close(jobs)
	wg.Wait()

	r.logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("missing", summary.Missing).
		Int("errors", summary.Errors).
		Msg("失败上传重跑结束")
	return summary, ctx.Err()
}

type reprocessResult int

const (
	resultSucceeded reprocessResult = iota
	resultFailed
	resultSkipped
	resultMissing
	resultError
	resultPending
)

func (s *ReprocessSummary) add(r reprocessResult) {
	switch r {
	case resultSucceeded:
		s.Succeeded++
	case resultFailed:
		s.Failed++
	case resultSkipped:
		s.Skipped++
	case resultMissing:
		s.Missing++
	case resultError:
		s.Errors++
	case resultPending:
		s.Pending++
	}
}

func (r *Reprocessor) reprocessOne(ctx context.Context, row models.FailedUpload) reprocessResult {
	log := r.logger.With().Uint64("failed_id", row.ID).Str("submission_uuid", row.SubmissionUUID).Logger()

	data, err := r.files.GetResumeFile(ctx, row.ObjectKey)
	if err != nil {
		log.Warn().Err(err).Str("object_key", row.ObjectKey).Msg("原始文件不可用")
		return resultMissing
	}
	if r.dryRun {
		return resultPending
	}

	md5Hex := utils.CalculateMD5(data)
	if r.claimer != nil {
		exists, err := r.claimer.CheckAndAddRawFileMD5(ctx, md5Hex)
		if err != nil {
			log.Error().Err(err).Msg("登记文件MD5失败")
			return resultError
		}
		if exists {
			log.Info().Str("md5", md5Hex).Msg("同一文件已重新上传，删除旧失败记录")
			return r.cleanup(ctx, log, row, resultSkipped)
		}
	}

	outcome, err := r.ingest.ProcessUploadedResume(ctx, storage.ResumeUploadMessage{
		SubmissionUUID:      row.SubmissionUUID,
		SubmissionTimestamp: row.OccurredAt,
		OriginalFilename:    row.OriginalFilename,
		OriginalFilePathOSS: row.ObjectKey,
		DeclaredSource:      row.DeclaredSource,
		IsHTML:              row.IsHTML,
		VacancyID:           types.Deref(row.VacancyID),
		UploaderID:          row.UploaderID,
		RawFileMD5:          md5Hex,
	})
	if err != nil {
		log.Error().Err(err).Msg("重跑失败，保留记录")
		return resultError
	}
	if outcome.Failure != nil {
		return r.cleanup(ctx, log, row, resultFailed)
	}
	log.Info().Str("resume_id", outcome.ResumeID).Msg("重跑成功")
	return r.cleanup(ctx, log, row, resultSucceeded)
}

// cleanup 删除旧记录；再次失败时入库流程已写入新记录
func (r *Reprocessor) cleanup(ctx context.Context, log zerolog.Logger, row models.FailedUpload, result reprocessResult) reprocessResult {
	if err := r.source.DeleteFailedUpload(ctx, row.ID); err != nil {
		log.Error().Err(err).Msg("删除旧失败记录失败")
		return resultError
	}
	return result
}
