package parser

import (
	"errors"
	"fmt"
	"strings"

	"resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/types"

	"github.com/rs/zerolog"
)

// ErrNoParserMatched 所有解析器都没有给出名字和期望职位
var ErrNoParserMatched = errors.New("没有解析器能识别该简历")

// DefaultOrder 默认尝试顺序，站点专用版式在前，通用版式在后
var DefaultOrder = []types.SourceSite{
	types.SourceHeadHunter,
	types.SourceAvito,
	types.SourceSuperJob,
	types.SourceRabota,
}

var registry = map[types.SourceSite]func() SourceParser{
	types.SourceHeadHunter: func() SourceParser { return NewHHParser() },
	types.SourceAvito:      func() SourceParser { return NewAvitoParser() },
	types.SourceSuperJob:   func() SourceParser { return NewSuperJobParser() },
	types.SourceRabota:     func() SourceParser { return NewRabotaParser() },
}

// ParsersByName 按配置的名称顺序构建解析器列表，名称为空时使用DefaultOrder
func ParsersByName(names []string) ([]SourceParser, error) {
	if len(names) == 0 {
		names = make([]string, 0, len(DefaultOrder))
		for _, s := range DefaultOrder {
			names = append(names, string(s))
		}
	}

	parsers := make([]SourceParser, 0, len(names))
	seen := make(map[types.SourceSite]bool, len(names))
	for _, name := range names {
		source := types.SourceSite(strings.ToLower(strings.TrimSpace(name)))
		build, ok := registry[source]
		if !ok {
			return nil, fmt.Errorf("未知的解析器: %q", name)
		}
		if seen[source] {
			return nil, fmt.Errorf("解析器 %q 重复配置", name)
		}
		seen[source] = true
		parsers = append(parsers, build())
	}
	return parsers, nil
}

// Chain 按固定顺序尝试解析器，第一个满足必填条件的结果胜出
type Chain struct {
	parsers []SourceParser
	logger  zerolog.Logger
}

// ChainOption 定义配置选项函数
type ChainOption func(*Chain)

// WithChainLogger 配置日志记录器
func WithChainLogger(l zerolog.Logger) ChainOption {
	return func(c *Chain) {
		c.logger = l
	}
}

// NewChain 创建解析链，parsers的顺序即尝试顺序
func NewChain(parsers []SourceParser, opts ...ChainOption) *Chain {
	c := &Chain{
		parsers: append([]SourceParser(nil), parsers...),
		logger:  logger.Logger.With().Str("component", "parser_chain").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sources 返回当前的尝试顺序
func (c *Chain) Sources() []types.SourceSite {
	out := make([]types.SourceSite, 0, len(c.parsers))
	for _, p := range c.parsers {
		out = append(out, p.Source())
	}
	return out
}

// Resolve 依次尝试，成功的记录会标记文档类型
func (c *Chain) Resolve(lines []string, docType types.DocumentType) (*types.CandidateRecord, error) {
	for _, p := range c.parsers {
		rec := c.attempt(p, lines)
		if !rec.RequiredFilled() {
			continue
		}
		rec.DocumentType = docType
		c.logger.Debug().
			Str("source", string(p.Source())).
			Str("doc_type", string(docType)).
			Msg("解析器匹配成功")
		return rec, nil
	}
	return nil, fmt.Errorf("%w: 已尝试 %d 个解析器", ErrNoParserMatched, len(c.parsers))
}

// attempt 解析器内部的panic视为没有结果
func (c *Chain) attempt(p SourceParser, lines []string) (rec *types.CandidateRecord) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().
				Str("source", string(p.Source())).
				Interface("panic", r).
				Msg("解析器发生panic，按无结果处理")
			rec = nil
		}
	}()
	return p.Attempt(lines)
}
