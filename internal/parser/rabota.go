package parser

import (
	"strings"

	"resume-ingest-go/internal/normalize"
	"resume-ingest-go/internal/types"
)

// Rabota.ru的DOC导出：前两行是站点抬头
const (
	rabotaNameLine     = 2
	rabotaPositionLine = 3
)

// RabotaParser Rabota.ru导出的DOC简历
type RabotaParser struct{}

// NewRabotaParser 创建Rabota.ru解析器
func NewRabotaParser() *RabotaParser { return &RabotaParser{} }

// Source 来源
func (p *RabotaParser) Source() types.SourceSite { return types.SourceRabota }

// Attempt 名字和职位在固定行，其余字段按标签查找
func (p *RabotaParser) Attempt(lines []string) *types.CandidateRecord {
	if len(lines) <= rabotaPositionLine {
		return nil
	}
	name := lines[rabotaNameLine]
	position := lines[rabotaPositionLine]
	if !looksLikeName(name) || strings.Contains(position, ":") {
		return nil
	}

	rec := &types.CandidateRecord{SourceSite: types.SourceRabota}
	var city, street *string
	for _, line := range lines[rabotaPositionLine+1:] {
		if rec.Phone == nil {
			rec.Phone = labeledPhone(line)
		}
		if rec.Email == nil {
			rec.Email = labeledEmail(line)
		}
		if rec.BirthDate == nil {
			rec.BirthDate = labeledBirthDate(line, normalize.RuShort, normalize.RuFull)
		}
		if city == nil {
			city = labeled(line, "Город:")
		}
		if street == nil {
			street = labeled(line, "Адрес:")
		}
	}

	// 没有任何标签行说明不是这个版式
	if rec.Phone == nil && rec.Email == nil && rec.BirthDate == nil && city == nil && street == nil {
		return nil
	}

	normalize.SplitFullName(name).Apply(rec)
	rec.DesiredPosition = types.StringPtr(position)
	rec.Address = joinAddress(city, street)

	if !rec.RequiredFilled() {
		return nil
	}
	return rec
}

func joinAddress(city, street *string) *string {
	var parts []string
	for _, p := range []*string{city, street} {
		if p != nil {
			parts = append(parts, *p)
		}
	}
	return types.StringPtr(strings.Join(parts, ", "))
}
