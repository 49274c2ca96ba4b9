package tracing

import (
	"strings"
)

// span属性长度上限
const (
	DefaultMaxLength = 200
	MaxSQLLength     = 500
	MaxRedisLength   = 100
	MaxHeaderLength  = 100
	MaxResumeLength  = 150 // 简历正文预览
)

// piiKeywords 属性名包含这些词时值需要掩码，候选人数据以俄文为主
var piiKeywords = []string{
	"name", "фамилия", "имя", "отчество",
	"phone", "телефон",
	"email", "почта",
	"address", "адрес",
	"birth", "рождения",
	"password", "secret", "token",
}

// SafeAttributeValue 个人信息掩码，其他值按长度截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, keyword := range piiKeywords {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 掩码个人信息：不超过4个字符时保留首尾各1个，更长时保留首尾各2个
// 例如 "Иван" -> "И**н"，"79161234567" -> "79*******67"
func MaskPII(value string) string {
	runes := []rune(value)
	n := len(runes)
	switch {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[0]) + "*"
	case n <= 4:
		return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1])
	default:
		return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
	}
}

// TruncateString 按rune截断，保留首尾，中间用...连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	keep := max((maxLength-3)/2, 1)
	return string(runes[:keep]) + "..." + string(runes[len(runes)-keep:])
}

// SafeSQL 截断SQL语句
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeRedisKey 截断Redis键
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeResumeContent 截断简历正文，只用于调试日志
func SafeResumeContent(content string) string {
	return TruncateString(content, MaxResumeLength)
}
