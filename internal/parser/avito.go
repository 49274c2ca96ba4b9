package parser

import (
	"strings"

	"resume-ingest-go/internal/normalize"
	"resume-ingest-go/internal/types"
)

// 其它网站转发到Avito的简历带有这些页脚，交给对应的解析器
var avitoForeignFooters = []string{"Резюме предоставлено", "hh.ru", "HeadHunter"}

// avitoFooterWindow 只在末尾几行里找页脚
const avitoFooterWindow = 3

// Avito版式相对首个内容行的固定偏移
const (
	avitoNameOffset     = 1
	avitoBirthOffset    = 2
	avitoAddressOffset  = 3
	avitoPhoneOffset    = 4
	avitoEmailOffset    = 5
	avitoPositionOffset = 6
)

// AvitoParser Avito聚合平台导出的简历
type AvitoParser struct{}

// NewAvitoParser 创建Avito解析器
func NewAvitoParser() *AvitoParser { return &AvitoParser{} }

// Source 来源
func (p *AvitoParser) Source() types.SourceSite { return types.SourceAvito }

// Attempt 按固定偏移读取标签行
func (p *AvitoParser) Attempt(lines []string) *types.CandidateRecord {
	if hasForeignFooter(lines) {
		return nil
	}

	start := 0
	if len(lines) > 0 && containsFold(lines[0], "avito") {
		start = 1
	}
	at := func(offset int) string {
		if i := start + offset; i < len(lines) {
			return lines[i]
		}
		return ""
	}

	positionLine, ok := normalize.LabelValue(at(avitoPositionOffset), "Желаемая должность:")
	if !ok {
		return nil
	}
	nameLine := at(avitoNameOffset)
	if !looksLikeName(nameLine) {
		return nil
	}

	rec := &types.CandidateRecord{SourceSite: types.SourceAvito}
	normalize.SplitFullName(nameLine).Apply(rec)
	rec.BirthDate = labeledBirthDate(at(avitoBirthOffset), normalize.RuShort)
	rec.Address = labeled(at(avitoAddressOffset), "Адрес:")
	rec.Phone = labeledPhone(at(avitoPhoneOffset))
	rec.Email = labeledEmail(at(avitoEmailOffset))
	rec.DesiredPosition = types.StringPtr(normalize.StripTrailingSalary(positionLine))
	rec.Salary = normalize.TrailingSalary(positionLine)

	if !rec.RequiredFilled() {
		return nil
	}
	return rec
}

// hasForeignFooter 页脚是末尾的无标签行，邮箱和正文里提到hh.ru不算
func hasForeignFooter(lines []string) bool {
	for _, line := range lines[max(len(lines)-avitoFooterWindow, 0):] {
		if strings.ContainsAny(line, ":@") {
			continue
		}
		for _, footer := range avitoForeignFooters {
			if containsFold(line, footer) {
				return true
			}
		}
	}
	return false
}
