// Package normalize 提供简历字段的标准化函数：姓名拆分、电话、邮箱、薪资、多语言日期。
// 所有函数均为纯函数，包级正则和月份表初始化后只读，可并发调用。
package normalize

import (
	"strings"

	"resume-ingest-go/internal/types"
)

// FullName 拆分后的姓名，缺失部分为nil
type FullName struct {
	Last   *string
	First  *string
	Middle *string
}

// SplitFullName 按空格拆分全名
//
//	1个词: 名
//	2个词: 姓 名
//	3个词: 姓 名 父称
//	多于3个词时，第3个词之后全部并入父称
func SplitFullName(full string) FullName {
	tokens := strings.Fields(strings.Trim(full, " \t\u00a0,;"))
	var name FullName
	switch len(tokens) {
	case 0:
	case 1:
		name.First = types.StringPtr(tokens[0])
	case 2:
		name.Last = types.StringPtr(tokens[0])
		name.First = types.StringPtr(tokens[1])
	default:
		name.Last = types.StringPtr(tokens[0])
		name.First = types.StringPtr(tokens[1])
		name.Middle = types.StringPtr(strings.Join(tokens[2:], " "))
	}
	return name
}

// Apply 把姓名写入记录
func (n FullName) Apply(rec *types.CandidateRecord) {
	rec.LastName = n.Last
	rec.FirstName = n.First
	rec.MiddleName = n.Middle
}

// CleanLine 去掉行首尾的空白、制表符和不换行空格
func CleanLine(s string) string {
	return strings.Trim(s, " \t\r\n\u00a0\ufeff")
}

// LabelValue 行以任一标签开头（忽略大小写）时返回标签后的内容
func LabelValue(line string, labels ...string) (string, bool) {
	trimmed := CleanLine(line)
	lower := strings.ToLower(trimmed)
	for _, label := range labels {
		l := strings.ToLower(label)
		if strings.HasPrefix(lower, l) {
			// 按rune截取，ToLower可能改变字节长度
			return CleanLine(string([]rune(trimmed)[len([]rune(l)):])), true
		}
	}
	return "", false
}
