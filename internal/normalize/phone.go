package normalize

import (
	"regexp"
	"strings"
)

const (
	// CountryCode 国家代码
	CountryCode = "7"
	// TrunkPrefix 国内长途前缀
	TrunkPrefix = "8"
	// InternationalPrefix 国际拨号前缀，后面直接跟10位号码
	InternationalPrefix = "810"
)

var (
	nonDigitRe = regexp.MustCompile(`\D+`)
	// 行内的电话号码片段：可选+号，数字、空格、括号、连字符，至少10位
	phoneInLineRe = regexp.MustCompile(`\+?\d[\d\s()\-]{8,}\d`)
)

// StripPhone 去掉所有非数字字符
func StripPhone(raw string) string {
	return nonDigitRe.ReplaceAllString(raw, "")
}

// NormalizePhone 把号码规范为以国家代码开头的11位数字
//
//	11位且以8开头 -> 8替换为7
//	11位且以7开头 -> 原样
//	13位且以810开头 -> 810替换为7
//	其它长度 -> nil
func NormalizePhone(raw string) *string {
	digits := StripPhone(raw)
	var out string
	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, TrunkPrefix):
		out = CountryCode + digits[1:]
	case len(digits) == 11 && strings.HasPrefix(digits, CountryCode):
		out = digits
	case len(digits) == 13 && strings.HasPrefix(digits, InternationalPrefix):
		out = CountryCode + digits[len(InternationalPrefix):]
	default:
		return nil
	}
	return &out
}

// FindPhone 在一行文本中查找第一个可规范化的电话号码
func FindPhone(line string) *string {
	for _, m := range phoneInLineRe.FindAllString(line, -1) {
		if p := NormalizePhone(m); p != nil {
			return p
		}
	}
	return nil
}
