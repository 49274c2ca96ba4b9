package processor

import (
	"time"

	"github.com/rs/zerolog"
)

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// ----- 组件选项 -----

// WithcompLineExtractor 设置文本行提取器
func WithcompLineExtractor(lines LineSource) ComponentOpt {
	return func(c *Components) {
		c.LineExtractor = lines
	}
}

// WithcompResolver 设置来源解析链
func WithcompResolver(resolver RecordResolver) ComponentOpt {
	return func(c *Components) {
		c.Resolver = resolver
	}
}

// WithcompHTMLExtractor 设置HTML提取器
func WithcompHTMLExtractor(html HTMLRecordExtractor) ComponentOpt {
	return func(c *Components) {
		c.HTMLExtractor = html
	}
}

// WithcompParsedCache 设置解析结果缓存
func WithcompParsedCache(cache ParsedCache) ComponentOpt {
	return func(c *Components) {
		c.Cache = cache
	}
}

// ----- 设置选项 -----

// WithsetDebug 设置调试模式
func WithsetDebug(debug bool) SettingOpt {
	return func(s *Settings) {
		s.Debug = debug
	}
}

// WithsetLogger 设置日志记录器
func WithsetLogger(logger zerolog.Logger) SettingOpt {
	return func(s *Settings) {
		s.Logger = &logger
	}
}

// WithsetDocumentTimeout 设置单份简历的处理超时
func WithsetDocumentTimeout(timeout time.Duration) SettingOpt {
	return func(s *Settings) {
		if timeout > 0 {
			s.DocumentTimeout = timeout
		}
	}
}

// ApplyComponentOpts 依次应用组件选项
func ApplyComponentOpts(comp *Components, opts ...ComponentOpt) *Components {
	if comp == nil {
		comp = &Components{}
	}
	for _, opt := range opts {
		opt(comp)
	}
	return comp
}
