package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"resume-ingest-go/internal/types"
)

// MonthTable 月份名到月份的映射，初始化后只读
type MonthTable map[string]time.Month

// RuFull 俄语月份全称，同时收录属格（15 марта）和主格（март）
var RuFull = MonthTable{
	"января": time.January, "февраля": time.February, "марта": time.March,
	"апреля": time.April, "мая": time.May, "июня": time.June,
	"июля": time.July, "августа": time.August, "сентября": time.September,
	"октября": time.October, "ноября": time.November, "декабря": time.December,

	"январь": time.January, "февраль": time.February, "март": time.March,
	"апрель": time.April, "май": time.May, "июнь": time.June,
	"июль": time.July, "август": time.August, "сентябрь": time.September,
	"октябрь": time.October, "ноябрь": time.November, "декабрь": time.December,
}

// RuShort 俄语三字母缩写
var RuShort = MonthTable{
	"янв": time.January, "фев": time.February, "мар": time.March,
	"апр": time.April, "мая": time.May, "июн": time.June,
	"июл": time.July, "авг": time.August, "сен": time.September,
	"окт": time.October, "ноя": time.November, "дек": time.December,
	// "май" 本身只有三个字母
	"май": time.May,
}

// EnFull 英语月份全称
var EnFull = MonthTable{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// Lookup 忽略大小写和末尾的句点
func (t MonthTable) Lookup(token string) (time.Month, bool) {
	m, ok := t[strings.ToLower(strings.TrimRight(token, ".,"))]
	return m, ok
}

var (
	// <day> <month> <year>，月份允许俄文和拉丁字母
	dayMonthYearRe = regexp.MustCompile(`(\d{1,2})\s+([\p{L}]+)\.?\s+(\d{4})`)
	// English: <month> <day>, <year>
	monthDayYearRe = regexp.MustCompile(`([A-Za-z]+)\s+(\d{1,2}),?\s+(\d{4})`)
	numericDateRe  = regexp.MustCompile(`(\d{1,2})[./-](\d{1,2})[./-](\d{4})`)
	isoDateRe      = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
)

// ParseDayMonthYear 在文本中查找 "<day> <month-name> <year>" 短语
// 月份不在表中或日期非法时返回nil
func ParseDayMonthYear(text string, table MonthTable) *types.Date {
	for _, m := range dayMonthYearRe.FindAllStringSubmatch(text, -1) {
		month, ok := table.Lookup(m[2])
		if !ok {
			continue
		}
		if d := buildDate(m[3], month, m[1]); d != nil {
			return d
		}
	}
	// 英文简历也可能写成 "March 15, 1990"
	for _, m := range monthDayYearRe.FindAllStringSubmatch(text, -1) {
		month, ok := table.Lookup(m[1])
		if !ok {
			continue
		}
		if d := buildDate(m[3], month, m[2]); d != nil {
			return d
		}
	}
	return nil
}

// ParseNumericDate 解析 dd.mm.yyyy（分隔符也可以是/或-）
func ParseNumericDate(text string) *types.Date {
	m := numericDateRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	month, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	return buildDate(m[3], time.Month(month), m[1])
}

// ParseISODate 解析 yyyy-mm-dd
func ParseISODate(text string) *types.Date {
	m := isoDateRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	month, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	return buildDate(m[1], time.Month(month), m[3])
}

// ParseAnyDate 先按 dd.mm.yyyy，失败再按ISO
func ParseAnyDate(text string) *types.Date {
	if d := ParseNumericDate(text); d != nil {
		return d
	}
	return ParseISODate(text)
}

func buildDate(year string, month time.Month, day string) *types.Date {
	y, err := strconv.Atoi(year)
	if err != nil {
		return nil
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return nil
	}
	return types.NewDate(y, month, d)
}
