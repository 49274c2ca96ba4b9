// Package extractor 负责格式识别和把原始文件还原为按行排列的纯文本。
package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"resume-ingest-go/internal/types"
)

var (
	// ErrUnsupportedFormat 扩展名不在支持列表中
	ErrUnsupportedFormat = errors.New("不支持的文件格式")
	// ErrUnsupportedSource HTML简历的来源代码未知
	ErrUnsupportedSource = errors.New("不支持的简历来源")
	// ErrExtraction 文本解码失败或结果为空
	ErrExtraction = errors.New("文本提取失败")
)

// Route 提取路径
type Route string

const (
	// RouteRichText 内置RTF解码
	RouteRichText Route = "rich_text"
	// RoutePlainText 纯文本
	RoutePlainText Route = "plain_text"
	// RouteHTML 按来源的定位规则解析HTML
	RouteHTML Route = "html"
	// RouteBinary 通过Tika提取（doc/docx/xls/xlsx/rar/zip）
	RouteBinary Route = "binary"
)

var extensionTypes = map[string]types.DocumentType{
	".xls":  types.DocumentXLS,
	".rtf":  types.DocumentRTF,
	".doc":  types.DocumentDOC,
	".docx": types.DocumentDOCX,
	".xlsx": types.DocumentXLSX,
	".txt":  types.DocumentTXT,
	".html": types.DocumentHTML,
	".htm":  types.DocumentHTML,
	".rar":  types.DocumentRAR,
	".zip":  types.DocumentZIP,
}

// Detection 格式识别结果
type Detection struct {
	DocType types.DocumentType
	Source  types.SourceSite // 仅HTML路径有值
	Route   Route
}

// DetectFormat 按扩展名（忽略大小写）识别文档类型
func DetectFormat(fileName string) (types.DocumentType, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if docType, ok := extensionTypes[ext]; ok {
		return docType, nil
	}
	if ext == "" {
		return "", fmt.Errorf("%w: 文件 %q 没有扩展名", ErrUnsupportedFormat, fileName)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, strings.TrimPrefix(ext, "."))
}

// DetectSource 校验来源代码
func DetectSource(code string) (types.SourceSite, error) {
	source := types.SourceSite(strings.ToLower(strings.TrimSpace(code)))
	if !source.IsKnown() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, code)
	}
	return source, nil
}

// Detect 只依据文件名和声明的来源决定提取路径，不读取内容
func Detect(doc types.RawDocument) (Detection, error) {
	docType, err := DetectFormat(doc.FileName)
	if err != nil {
		return Detection{}, err
	}

	if doc.IsHTML || docType == types.DocumentHTML {
		source, err := DetectSource(doc.DeclaredSource)
		if err != nil {
			return Detection{}, err
		}
		return Detection{DocType: types.DocumentHTML, Source: source, Route: RouteHTML}, nil
	}

	return Detection{DocType: docType, Route: routeFor(docType)}, nil
}

func routeFor(docType types.DocumentType) Route {
	switch docType {
	case types.DocumentRTF:
		return RouteRichText
	case types.DocumentTXT:
		return RoutePlainText
	case types.DocumentHTML:
		return RouteHTML
	default:
		return RouteBinary
	}
}
