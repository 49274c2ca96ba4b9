package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// "от 80 000 до 120 000 руб" / "from 80000 to 120000"
	salaryRangeRe = regexp.MustCompile(`(?i)(?:от|from)\s*([\d\s\x{00a0}]+?)\s*(?:до|to)\s*([\d\s\x{00a0}]+)`)
	// 只有上限: "до 120 000"
	salaryUpperRe = regexp.MustCompile(`(?i)(?:^|\s)(?:до|to)\s*([\d\s\x{00a0}]*\d)`)
	digitGroupRe  = regexp.MustCompile(`\d+`)
	currencyRe    = regexp.MustCompile(`(?i)(руб|rub|usd|eur|\$|€|₽|зарплат|salary|з/п)`)
	trailingNumRe = regexp.MustCompile(`[\s,;\-–]*[\d\s]*\d\s*(?:руб\.?|₽|rub)?\s*$`)
)

// ParseSalary 从薪资文本中提取金额
// 区间取上限，否则把全部数字拼接；没有数字返回nil
func ParseSalary(text string) *int {
	if m := salaryRangeRe.FindStringSubmatch(text); m != nil {
		if v := digitsToInt(m[2]); v != nil {
			return v
		}
	}
	if m := salaryUpperRe.FindStringSubmatch(text); m != nil {
		if v := digitsToInt(m[1]); v != nil {
			return v
		}
	}
	return digitsToInt(text)
}

// TrailingSalary 取文本中最后一组数字，例如 "Менеджер 45000" -> 45000
// 数字组之间只隔空格时视为同一个数（"45 000"）
func TrailingSalary(text string) *int {
	trimmed := strings.TrimRight(CleanLine(text), " .,;руб₽RUBrub")
	idx := len(trimmed)
	for idx > 0 {
		c := trimmed[idx-1]
		if (c >= '0' && c <= '9') || c == ' ' {
			idx--
			continue
		}
		break
	}
	tail := strings.TrimSpace(trimmed[idx:])
	if tail == "" {
		return nil
	}
	return digitsToInt(tail)
}

// StripTrailingSalary 去掉末尾的薪资数字，返回剩余的职位文本
func StripTrailingSalary(text string) string {
	trimmed := CleanLine(text)
	loc := trailingNumRe.FindStringIndex(trimmed)
	if loc == nil {
		return trimmed
	}
	return CleanLine(trimmed[:loc[0]])
}

// LooksLikeSalary 文本含货币符号、薪资标签，或只由数字构成
func LooksLikeSalary(text string) bool {
	t := CleanLine(text)
	if t == "" || !digitGroupRe.MatchString(t) {
		return false
	}
	if currencyRe.MatchString(t) {
		return true
	}
	return StripPhone(t) == strings.Join(strings.Fields(t), "")
}

func digitsToInt(s string) *int {
	digits := StripPhone(s)
	if digits == "" {
		return nil
	}
	// 防止超长数字串溢出
	if len(digits) > 9 {
		return nil
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &v
}
