package processor // 定义了简历解析流程的核心逻辑和组件

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/extractor"
	"resume-ingest-go/internal/htmlresume"
	"resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/parser"
	"resume-ingest-go/internal/tracing"
	"resume-ingest-go/internal/types"
	"resume-ingest-go/internal/utils"
	"resume-ingest-go/internal/validator"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("resume-ingest-go/processor")

// Components 聚合所有功能组件依赖，便于集中管理和测试替换
type Components struct {
	LineExtractor LineSource          // 非HTML文档的文本行提取
	Resolver      RecordResolver      // 来源解析链
	HTMLExtractor HTMLRecordExtractor // HTML导出的结构化提取
	Cache         ParsedCache         // 可选，解析结果缓存
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	Debug           bool            // 是否开启调试模式
	Logger          *zerolog.Logger // 日志记录器
	DocumentTimeout time.Duration   // 单份简历处理超时，入库流程使用
}

// ResumeProcessor 单份简历的解析流程：格式识别、文本提取、来源解析、校验
// 构造后只读，可并发调用
type ResumeProcessor struct {
	LineExtractor LineSource
	Resolver      RecordResolver
	HTMLExtractor HTMLRecordExtractor
	Cache         ParsedCache

	Config Settings
	logger zerolog.Logger
}

var _ DocumentProcessor = (*ResumeProcessor)(nil)

// NewResumeProcessorV2 使用组件和设置创建处理器
func NewResumeProcessorV2(comp *Components, set *Settings, opts ...SettingOpt) *ResumeProcessor {
	if comp == nil {
		comp = &Components{}
	}
	if set == nil {
		set = &Settings{}
	}
	for _, opt := range opts {
		opt(set)
	}

	if set.Logger == nil {
		l := logger.Logger.With().Str("component", "resume_processor").Logger()
		set.Logger = &l
	}
	if set.DocumentTimeout <= 0 {
		set.DocumentTimeout = 90 * time.Second
	}

	rp := &ResumeProcessor{
		LineExtractor: comp.LineExtractor,
		Resolver:      comp.Resolver,
		HTMLExtractor: comp.HTMLExtractor,
		Cache:         comp.Cache,
		Config:        *set,
		logger:        *set.Logger,
	}

	if rp.LineExtractor == nil || rp.Resolver == nil {
		rp.logger.Warn().Msg("ResumeProcessor 缺少文本解析组件，非HTML简历将无法处理")
	}
	if rp.HTMLExtractor == nil {
		rp.logger.Warn().Msg("ResumeProcessor 缺少HTML提取器，HTML简历将无法处理")
	}
	return rp
}

// CreateProcessorFromConfig 根据配置创建处理器，缓存等外部依赖通过 compOpts 注入
func CreateProcessorFromConfig(cfg *config.Config, compOpts ...ComponentOpt) (*ResumeProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	base := logger.Logger

	rtf, err := extractor.NewRTFDecoder(cfg.Parser.RTFArtifactPattern)
	if err != nil {
		return nil, fmt.Errorf("创建RTF解码器失败: %w", err)
	}

	var binary extractor.BinaryDecoder
	if cfg.Tika.ServerURL != "" {
		tikaOpts := append(extractor.TikaOptionsFromConfig(cfg.Tika),
			extractor.WithTikaLogger(base.With().Str("component", "tika").Logger()))
		binary = extractor.NewTikaExtractor(cfg.Tika.ServerURL, tikaOpts...)
	} else {
		base.Warn().Msg("未配置Tika服务器，doc/docx/xls等格式将无法解析")
	}

	parsers, err := parser.ParsersByName(cfg.Parser.Order)
	if err != nil {
		return nil, fmt.Errorf("解析器顺序配置错误: %w", err)
	}
	chain := parser.NewChain(parsers, parser.WithChainLogger(base.With().Str("component", "parser_chain").Logger()))

	var selectors htmlresume.SelectorSet
	if cfg.Parser.SelectorsFile != "" {
		selectors, err = htmlresume.LoadSelectors(cfg.Parser.SelectorsFile)
		if err != nil {
			return nil, fmt.Errorf("加载HTML定位规则失败: %w", err)
		}
	}

	comp := ApplyComponentOpts(&Components{
		LineExtractor: extractor.NewLineExtractor(rtf, binary),
		Resolver:      chain,
		HTMLExtractor: htmlresume.NewExtractor(selectors),
	}, compOpts...)

	settings := &Settings{
		Debug:           cfg.Logger.Level == "debug",
		DocumentTimeout: config.GetDuration(cfg.Processing.DocumentTimeout, 90*time.Second),
	}
	return NewResumeProcessorV2(comp, settings), nil
}

// Process 解析一份简历。格式或来源不支持、提取失败、无解析器匹配时返回 *ResumeProcessError；
// 联系方式校验问题只体现在 ProcessResult.Validation 中
func (rp *ResumeProcessor) Process(ctx context.Context, doc types.RawDocument) (*ProcessResult, error) {
	ctx, span := tracer.Start(ctx, "ResumeProcessor.Process",
		trace.WithAttributes(
			attribute.String("resume.file_name", tracing.TruncateString(doc.FileName, tracing.DefaultMaxLength)),
			attribute.Int("resume.size_bytes", len(doc.Data)),
		),
	)
	defer span.End()

	detection, err := extractor.Detect(doc)
	if err != nil {
		perr := NewDetectError(doc.FileName, err)
		tracing.RecordError(span, perr, tracing.ErrorTypeValidation)
		rp.logger.Info().Str("file", doc.FileName).Err(err).Msg("不支持的简历文件")
		return nil, perr
	}
	span.SetAttributes(
		attribute.String("resume.document_type", string(detection.DocType)),
		attribute.String("resume.route", string(detection.Route)),
		attribute.String("resume.source", string(detection.Source)),
	)

	cacheKey := ""
	if rp.Cache != nil {
		cacheKey = ParsedCacheKey(doc.Data, detection)
		cached, cacheErr := rp.Cache.GetParsedRecord(ctx, cacheKey)
		if cacheErr != nil {
			rp.logger.Warn().Err(cacheErr).Str("file", doc.FileName).Msg("读取解析缓存失败，继续解析")
		} else if cached != nil {
			span.AddEvent("parsed cache hit")
			return &ProcessResult{Record: cached, Validation: validator.Validate(cached), FromCache: true}, nil
		}
	}

	rec, err := rp.parse(ctx, doc, detection)
	if err != nil {
		errType := tracing.ErrorTypeInternal
		if KindOf(err) == KindExtraction {
			errType = tracing.ErrorTypeExternal
		}
		tracing.RecordError(span, err, errType)
		rp.logger.Info().Str("file", doc.FileName).Str("kind", string(KindOf(err))).Err(err).Msg("简历解析失败")
		return nil, err
	}
	span.SetAttributes(attribute.String("resume.matched_source", string(rec.SourceSite)))

	if rp.Cache != nil {
		if cacheErr := rp.Cache.SetParsedRecord(ctx, cacheKey, rec); cacheErr != nil {
			rp.logger.Warn().Err(cacheErr).Str("file", doc.FileName).Msg("写入解析缓存失败")
		}
	}

	validation := validator.Validate(rec)
	span.SetAttributes(
		attribute.Bool("resume.phone_valid", validation.PhoneValid),
		attribute.Bool("resume.email_valid", validation.EmailValid),
	)
	rp.logger.Debug().
		Str("file", doc.FileName).
		Str("source", string(rec.SourceSite)).
		Bool("valid", validation.Valid()).
		Msg("简历解析完成")

	return &ProcessResult{Record: rec, Validation: validation}, nil
}

// parse 按路由选择HTML提取或文本行解析
func (rp *ResumeProcessor) parse(ctx context.Context, doc types.RawDocument, detection extractor.Detection) (*types.CandidateRecord, error) {
	if detection.Route == extractor.RouteHTML {
		if rp.HTMLExtractor == nil {
			return nil, NewExtractError(doc.FileName, fmt.Errorf("HTML提取器未初始化"))
		}
		rec, err := rp.HTMLExtractor.ExtractRecord(doc.Data, detection.Source)
		if err != nil {
			return nil, NewExtractError(doc.FileName, err)
		}
		if !rec.RequiredFilled() {
			return nil, NewParseError(doc.FileName, "HTML中缺少姓名或期望职位")
		}
		return rec, nil
	}

	if rp.LineExtractor == nil || rp.Resolver == nil {
		return nil, NewExtractError(doc.FileName, fmt.Errorf("文本解析组件未初始化"))
	}
	lines, err := rp.LineExtractor.ExtractLines(ctx, doc.Data, doc.FileName, detection.DocType)
	if err != nil {
		return nil, NewExtractError(doc.FileName, err)
	}
	rec, err := rp.Resolver.Resolve(lines, detection.DocType)
	if err != nil {
		if rp.Config.Debug {
			rp.logger.Debug().
				Str("file", doc.FileName).
				Str("preview", tracing.SafeResumeContent(strings.Join(lines, "\n"))).
				Msg("没有解析器匹配")
		}
		return nil, NewParseError(doc.FileName, err.Error())
	}
	return rec, nil
}

// ParsedCacheKey 解析结果只取决于文件内容、格式和声明的来源
func ParsedCacheKey(data []byte, detection extractor.Detection) string {
	return fmt.Sprintf("%s:%s:%s", utils.CalculateMD5(data), detection.DocType, detection.Source)
}
