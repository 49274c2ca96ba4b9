package processor

import (
	"context"
	"errors"
	"fmt"

	"resume-ingest-go/internal/extractor"
	"resume-ingest-go/internal/parser"
)

// 处理流程对外暴露的错误类型，与各阶段的哨兵错误是同一个值
var (
	ErrUnsupportedFormat = extractor.ErrUnsupportedFormat
	ErrUnsupportedSource = extractor.ErrUnsupportedSource
	ErrExtraction        = extractor.ErrExtraction
	ErrNoParserMatched   = parser.ErrNoParserMatched
)

// 入库流程自身的错误
var (
	ErrResumeDownloadFailed = errors.New("下载简历失败")
	ErrDatabaseFailed       = errors.New("数据库操作失败")
	ErrDuplicateContent     = errors.New("重复的简历文件")
)

// ErrorKind 错误分类，用于日志、追踪和失败记录
type ErrorKind string

const (
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindUnsupportedSource ErrorKind = "unsupported_source"
	KindExtraction        ErrorKind = "extraction"
	KindNoParserMatched   ErrorKind = "no_parser_matched"
	KindDownload          ErrorKind = "download"
	KindDatabase          ErrorKind = "database"
	KindDuplicate         ErrorKind = "duplicate"
	KindTimeout           ErrorKind = "timeout"
	KindInternal          ErrorKind = "internal"
)

// 面向上传人员的提示文案
const (
	MsgCannotProcessFile = "Невозможно обработать этот файл"
	MsgCannotExtractData = "Не удалось извлечь данные резюме"
)

// ResumeProcessError 包含详细错误信息的自定义错误
type ResumeProcessError struct {
	FileName string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *ResumeProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 文件:%s): %s", e.BaseErr, e.Op, e.FileName, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 文件:%s)", e.BaseErr, e.Op, e.FileName)
}

func (e *ResumeProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ResumeProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// Kind 错误分类
func (e *ResumeProcessError) Kind() ErrorKind {
	return KindOf(e.BaseErr)
}

// KindOf 对任意错误分类
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrUnsupportedSource):
		return KindUnsupportedSource
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrNoParserMatched):
		return KindNoParserMatched
	case errors.Is(err, ErrResumeDownloadFailed):
		return KindDownload
	case errors.Is(err, ErrDatabaseFailed):
		return KindDatabase
	case errors.Is(err, ErrDuplicateContent):
		return KindDuplicate
	default:
		return KindInternal
	}
}

// UserMessage 失败原因对应的提示文案，格式、来源不支持或文件无法解码时提示无法处理，其余提示无法提取
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindUnsupportedFormat, KindUnsupportedSource, KindExtraction:
		return MsgCannotProcessFile
	default:
		return MsgCannotExtractData
	}
}

// 错误构造函数
func NewDetectError(fileName string, err error) error {
	return &ResumeProcessError{
		FileName: fileName,
		Op:       "detect",
		BaseErr:  err,
	}
}

func NewExtractError(fileName string, err error) error {
	base := err
	if !errors.Is(err, ErrExtraction) {
		base = fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return &ResumeProcessError{
		FileName: fileName,
		Op:       "extract",
		BaseErr:  base,
	}
}

func NewParseError(fileName, detail string) error {
	return &ResumeProcessError{
		FileName: fileName,
		Op:       "parse",
		BaseErr:  ErrNoParserMatched,
		Detail:   detail,
	}
}

func NewDownloadError(fileName, detail string) error {
	return &ResumeProcessError{
		FileName: fileName,
		Op:       "download",
		BaseErr:  ErrResumeDownloadFailed,
		Detail:   detail,
	}
}

func NewDatabaseError(fileName, detail string) error {
	return &ResumeProcessError{
		FileName: fileName,
		Op:       "database",
		BaseErr:  ErrDatabaseFailed,
		Detail:   detail,
	}
}
