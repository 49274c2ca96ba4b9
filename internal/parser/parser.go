// Package parser 按来源网站的版式从行序列中恢复候选人字段。
//
// 每个SourceParser只认自己的锚点，锚点缺失时返回nil（没有结果），
// 由Chain按配置顺序依次尝试。
package parser

import (
	"strings"

	"resume-ingest-go/internal/normalize"
	"resume-ingest-go/internal/types"
)

// SourceParser 单个来源的解析器
type SourceParser interface {
	// Source 解析器对应的来源
	Source() types.SourceSite
	// Attempt 尝试解析，无法确定名字和期望职位时返回nil
	Attempt(lines []string) *types.CandidateRecord
}

// 标签行通用的字段提取，B和D两个版式共用

func labeledBirthDate(line string, tables ...normalize.MonthTable) *types.Date {
	value, ok := normalize.LabelValue(line, "Дата рождения:")
	if !ok {
		return nil
	}
	for _, table := range tables {
		if d := normalize.ParseDayMonthYear(value, table); d != nil {
			return d
		}
	}
	return normalize.ParseNumericDate(value)
}

// labeledPhone 开头的0视为国家代码的误写
func labeledPhone(line string) *string {
	value, ok := normalize.LabelValue(line, "Телефон:", "Тел.:", "Мобильный телефон:")
	if !ok {
		return nil
	}
	digits := normalize.StripPhone(value)
	if strings.HasPrefix(digits, "0") {
		digits = normalize.CountryCode + digits[1:]
	}
	return normalize.NormalizePhone(digits)
}

func labeledEmail(line string) *string {
	value, ok := normalize.LabelValue(line, "E-mail:", "Email:", "Электронная почта:")
	if !ok {
		return nil
	}
	return normalize.ExtractEmail(value)
}

func labeled(line string, labels ...string) *string {
	value, ok := normalize.LabelValue(line, labels...)
	if !ok {
		return nil
	}
	return types.StringPtr(value)
}

// looksLikeName 名字行不能是标签行，也不能含数字
func looksLikeName(line string) bool {
	if line == "" || strings.ContainsAny(line, ":@0123456789") {
		return false
	}
	return len(strings.Fields(line)) <= 4
}

func containsFold(line, sub string) bool {
	return strings.Contains(strings.ToLower(line), strings.ToLower(sub))
}
