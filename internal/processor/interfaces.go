package processor

import (
	"context"

	"resume-ingest-go/internal/storage"
	"resume-ingest-go/internal/types"
)

// ProcessResult 处理结果
type ProcessResult struct {
	// 标准化后的候选人记录
	Record *types.CandidateRecord

	// 联系方式校验结果，只影响是否自动邀请
	Validation types.ValidationResult

	// 是否命中解析缓存
	FromCache bool
}

//
// 解析流程相关接口
//

// LineSource 把文档字节还原为非空文本行
type LineSource interface {
	ExtractLines(ctx context.Context, data []byte, fileName string, docType types.DocumentType) ([]string, error)
}

// RecordResolver 按顺序尝试各来源解析器
type RecordResolver interface {
	Resolve(lines []string, docType types.DocumentType) (*types.CandidateRecord, error)
}

// HTMLRecordExtractor 按来源定位规则解析HTML导出
type HTMLRecordExtractor interface {
	ExtractRecord(data []byte, source types.SourceSite) (*types.CandidateRecord, error)
}

// ParsedCache 解析结果缓存，未命中时返回 (nil, nil)
type ParsedCache interface {
	GetParsedRecord(ctx context.Context, key string) (*types.CandidateRecord, error)
	SetParsedRecord(ctx context.Context, key string, rec *types.CandidateRecord) error
}

//
// 入库流程相关接口
//

// OriginalFileStore 原始文件存储
type OriginalFileStore interface {
	GetResumeFile(ctx context.Context, objectKey string) ([]byte, error)
}

// ResumeRepository 候选人简历持久化
type ResumeRepository interface {
	SaveResume(ctx context.Context, rec *types.CandidateRecord, vacancyID, uploaderID string) (string, error)
}

// FailedUploadReporter 记录失败的上传并通知运营
type FailedUploadReporter interface {
	ReportFailedUpload(ctx context.Context, notice storage.FailedUploadNotice) error
}

// InvitationPublisher 发布邀请资格事件
type InvitationPublisher interface {
	PublishInvitationEligibility(ctx context.Context, msg storage.InvitationEligibilityMessage) error
}

// UploadDeduplicator 原始文件MD5去重，处理失败时需要回滚
type UploadDeduplicator interface {
	RemoveRawFileMD5(ctx context.Context, md5Hex string) error
}

// DocumentProcessor 单份简历的完整解析，ResumeProcessor 实现该接口
type DocumentProcessor interface {
	Process(ctx context.Context, doc types.RawDocument) (*ProcessResult, error)
}
