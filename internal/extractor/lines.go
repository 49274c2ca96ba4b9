package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"resume-ingest-go/internal/normalize"
	"resume-ingest-go/internal/types"

	"golang.org/x/text/encoding/charmap"
)

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n", "\v", "\n", "\u2028", "\n")

// SplitLines 按换行拆分，去掉首尾空白和不换行空格，丢弃空行
func SplitLines(text string) []string {
	raw := strings.Split(lineBreaks.Replace(text), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = normalize.CleanLine(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// DecodePlainText UTF-8原样返回，否则按Windows-1251解码
func DecodePlainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: cp1251解码失败: %v", ErrExtraction, err)
	}
	return string(decoded), nil
}

// LineExtractor 把非HTML文档转换为行序列
type LineExtractor struct {
	rtf    *RTFDecoder
	binary BinaryDecoder
}

// NewLineExtractor binary为nil时，doc/docx/xls等格式返回ErrExtraction
func NewLineExtractor(rtf *RTFDecoder, binary BinaryDecoder) *LineExtractor {
	return &LineExtractor{rtf: rtf, binary: binary}
}

// ExtractLines 按文档类型选择解码器，结果为空视为提取失败
func (x *LineExtractor) ExtractLines(ctx context.Context, data []byte, fileName string, docType types.DocumentType) ([]string, error) {
	text, err := x.decode(ctx, data, fileName, docType)
	if err != nil {
		return nil, err
	}
	lines := SplitLines(text)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: 文件 %s 没有可用的文本行", ErrExtraction, fileName)
	}
	return lines, nil
}

func (x *LineExtractor) decode(ctx context.Context, data []byte, fileName string, docType types.DocumentType) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: 文件 %s 为空", ErrExtraction, fileName)
	}

	switch routeFor(docType) {
	case RouteRichText:
		if x.rtf == nil {
			return "", fmt.Errorf("%w: 未配置RTF解码器", ErrExtraction)
		}
		return x.rtf.DecodeText(data)
	case RoutePlainText:
		return DecodePlainText(data)
	case RouteBinary:
		if x.binary == nil {
			return "", fmt.Errorf("%w: 未配置Tika，无法处理 %s", ErrExtraction, docType)
		}
		return x.binary.DecodeText(ctx, data, fileName, docType)
	default:
		return "", fmt.Errorf("%w: %s 不走行提取路径", ErrUnsupportedFormat, docType)
	}
}
