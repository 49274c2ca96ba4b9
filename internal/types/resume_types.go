package types

import (
	"fmt"
	"time"
)

// Sex 候选人性别
type Sex string

const (
	// SexMale 男
	SexMale Sex = "M"
	// SexFemale 女
	SexFemale Sex = "W"
	// SexUnknown 未识别
	SexUnknown Sex = ""
)

// SourceSite 简历来源招聘网站代码
type SourceSite string

const (
	// SourceHeadHunter hh.ru
	SourceHeadHunter SourceSite = "hh"
	// SourceSuperJob superjob.ru
	SourceSuperJob SourceSite = "superjob"
	// SourceAvito avito.ru (聚合平台)
	SourceAvito SourceSite = "avito"
	// SourceRabota rabota.ru
	SourceRabota SourceSite = "rabota"
	// SourceZarplata zarplata.ru
	SourceZarplata SourceSite = "zarplata"
)

// KnownSources 所有已知来源，顺序固定
var KnownSources = []SourceSite{
	SourceHeadHunter,
	SourceSuperJob,
	SourceAvito,
	SourceRabota,
	SourceZarplata,
}

// IsKnown 判断来源代码是否在已知列表中
func (s SourceSite) IsKnown() bool {
	for _, known := range KnownSources {
		if s == known {
			return true
		}
	}
	return false
}

// DocumentType 上传文件的类型标签
type DocumentType string

const (
	DocumentXLS  DocumentType = "xls"  // 电子表格
	DocumentRTF  DocumentType = "rtf"  // 富文本
	DocumentDOC  DocumentType = "doc"  // Word 二进制
	DocumentDOCX DocumentType = "docx" // Word XML
	DocumentXLSX DocumentType = "xlsx" // 电子表格 XML
	DocumentTXT  DocumentType = "txt"  // 纯文本
	DocumentHTML DocumentType = "html" // HTML 导出
	DocumentRAR  DocumentType = "rar"  // RAR 压缩包
	DocumentZIP  DocumentType = "zip"  // ZIP 压缩包
)

// RawDocument 一次上传的原始输入，创建后不可修改
type RawDocument struct {
	Data           []byte
	FileName       string
	DeclaredSource string // 仅HTML来源需要
	IsHTML         bool
}

// Date 不带时区的日历日期
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate 校验并构造日期，非法日期（如2月30日）返回nil
func NewDate(year int, month time.Month, day int) *Date {
	if month < time.January || month > time.December || day < 1 || year < 1 {
		return nil
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return nil
	}
	return &Date{Year: year, Month: month, Day: day}
}

// Time 转换为UTC零点的time.Time
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON 输出 "2006-01-02"
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON 解析 "2006-01-02"
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	t, err := time.Parse(`"2006-01-02"`, s)
	if err != nil {
		return fmt.Errorf("日期格式错误: %w", err)
	}
	*d = Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
	return nil
}

// CandidateRecord 标准化后的候选人简历
// 未找到的字段保持nil，用于区分"不存在"和"找到但为空"
type CandidateRecord struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	MiddleName *string `json:"middle_name,omitempty"`
	Sex        Sex     `json:"sex,omitempty"`
	BirthDate  *Date   `json:"birth_date,omitempty"`

	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"` // 只含数字

	Address         *string `json:"address,omitempty"`
	DesiredPosition *string `json:"desired_position,omitempty"`
	Salary          *int    `json:"salary,omitempty"`

	SourceSite   SourceSite   `json:"source_site"`
	DocumentType DocumentType `json:"document_type"`
	PhotoURL     *string      `json:"photo_url,omitempty"`

	// 仅HTML来源: 保留完整的中间模型，供后续结构化存储
	HTML *HTMLResume `json:"html,omitempty"`
}

// RequiredFilled 名字和期望职位均非空
func (r *CandidateRecord) RequiredFilled() bool {
	if r == nil {
		return false
	}
	return nonEmpty(r.FirstName) && nonEmpty(r.DesiredPosition)
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

// ValidationResult 联系方式校验结果，只读
type ValidationResult struct {
	PhoneValid bool   `json:"phone_valid"`
	EmailValid bool   `json:"email_valid"`
	Message    string `json:"message"`
}

// Valid 电话和邮箱都通过
func (v ValidationResult) Valid() bool {
	return v.PhoneValid && v.EmailValid
}

// StringPtr 返回字符串指针，空串返回nil
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr 返回int指针
func IntPtr(i int) *int {
	return &i
}

// Deref 安全取值
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
