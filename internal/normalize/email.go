package normalize

import (
	"regexp"
	"strings"
)

const emailPattern = `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`

var (
	emailRe      = regexp.MustCompile(emailPattern)
	emailExactRe = regexp.MustCompile(`^` + emailPattern + `$`)
)

// ExtractEmail 返回行内第一个匹配的邮箱（小写），没有"@"直接返回nil
func ExtractEmail(line string) *string {
	if !strings.Contains(line, "@") {
		return nil
	}
	m := emailRe.FindString(line)
	if m == "" {
		return nil
	}
	m = strings.ToLower(m)
	return &m
}

// IsValidEmail 整串是否为合法邮箱
func IsValidEmail(s string) bool {
	return emailExactRe.MatchString(strings.TrimSpace(s))
}
