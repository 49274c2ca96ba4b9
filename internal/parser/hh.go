package parser

import (
	"strings"

	"resume-ingest-go/internal/normalize"
	"resume-ingest-go/internal/types"
)

// hhAnchors HeadHunter导出文件在某一语言下的锚点
type hhAnchors struct {
	positionMarker string
	employment     string
	addressLabels  []string
	experience     string
	months         normalize.MonthTable
}

var (
	hhRussian = hhAnchors{
		positionMarker: "Желаемая должность и зарплата",
		employment:     "Занятость:",
		addressLabels:  []string{"Проживает:"},
		experience:     "опыт",
		months:         normalize.RuFull,
	}
	hhEnglish = hhAnchors{
		positionMarker: "Desired position and salary",
		employment:     "Employment:",
		addressLabels:  []string{"Reside:", "Lives in:"},
		experience:     "experience",
		months:         normalize.EnFull,
	}
)

// 联系方式所在的行范围（含两端）
const (
	hhContactFirst = 2
	hhContactLast  = 5
)

// HHParser HeadHunter（hh.ru）导出的RTF/DOC简历
type HHParser struct{}

// NewHHParser 创建HeadHunter解析器
func NewHHParser() *HHParser { return &HHParser{} }

// Source 来源
func (p *HHParser) Source() types.SourceSite { return types.SourceHeadHunter }

// Attempt 先按职位锚点判断语言，再单次遍历提取
func (p *HHParser) Attempt(lines []string) *types.CandidateRecord {
	anchors, marker := detectHHLanguage(lines)
	if marker < 0 {
		return nil
	}

	employment := -1
	for i := marker + 1; i < len(lines); i++ {
		if containsFold(lines[i], anchors.employment) {
			employment = i
			break
		}
	}

	rec := &types.CandidateRecord{SourceSite: types.SourceHeadHunter}
	salaryLine := p.findSalary(lines, marker, anchors, rec)

	for i, line := range lines {
		switch {
		case i == 0:
			normalize.SplitFullName(line).Apply(rec)
		case i == 1:
			rec.Sex = normalize.DetectSex(line)
			rec.BirthDate = normalize.ParseDayMonthYear(line, anchors.months)
		case i >= hhContactFirst && i <= hhContactLast:
			if rec.Email == nil {
				rec.Email = normalize.ExtractEmail(line)
			}
			if rec.Phone == nil && !strings.Contains(line, "@") {
				rec.Phone = normalize.FindPhone(line)
			}
		}

		if rec.Address == nil {
			rec.Address = labeled(line, anchors.addressLabels...)
		}

		if i == marker {
			rec.DesiredPosition = hhPosition(lines, marker, employment, salaryLine)
		}

		if i > marker && hhFullyFilled(rec) {
			break
		}
	}

	if !rec.RequiredFilled() {
		return nil
	}
	return rec
}

func detectHHLanguage(lines []string) (hhAnchors, int) {
	for i, line := range lines {
		if strings.Contains(line, hhRussian.positionMarker) {
			return hhRussian, i
		}
	}
	for i, line := range lines {
		if strings.Contains(line, hhEnglish.positionMarker) {
			return hhEnglish, i
		}
	}
	return hhAnchors{}, -1
}

// findSalary 薪资在职位锚点之后的第2到第4行之一，跳过提到工作经验的行
func (p *HHParser) findSalary(lines []string, marker int, anchors hhAnchors, rec *types.CandidateRecord) int {
	for i := marker + 2; i <= marker+4 && i < len(lines); i++ {
		line := lines[i]
		if containsFold(line, anchors.experience) || containsFold(line, anchors.employment) {
			continue
		}
		if !normalize.LooksLikeSalary(line) {
			continue
		}
		if rec.Salary = normalize.ParseSalary(line); rec.Salary != nil {
			return i
		}
	}
	return -1
}

// hhPosition 锚点与"Занятость:"之间的所有行；没有"Занятость:"时只取锚点的下一行
func hhPosition(lines []string, marker, employment, salaryLine int) *string {
	end := employment
	if end < 0 {
		end = marker + 2
	}
	if end > len(lines) {
		end = len(lines)
	}

	var parts []string
	for i := marker + 1; i < end; i++ {
		if i == salaryLine {
			continue
		}
		parts = append(parts, lines[i])
	}
	return types.StringPtr(strings.Join(parts, ", "))
}

func hhFullyFilled(r *types.CandidateRecord) bool {
	return r.FirstName != nil && r.DesiredPosition != nil && r.Email != nil &&
		r.Phone != nil && r.Address != nil && r.BirthDate != nil &&
		r.Sex != types.SexUnknown && r.Salary != nil
}
