package parser

import (
	"resume-ingest-go/internal/normalize"
	"resume-ingest-go/internal/types"
)

// SuperJobParser SuperJob导出的简历，完全由行首标签驱动，与行顺序无关
type SuperJobParser struct{}

// NewSuperJobParser 创建SuperJob解析器
func NewSuperJobParser() *SuperJobParser { return &SuperJobParser{} }

// Source 来源
func (p *SuperJobParser) Source() types.SourceSite { return types.SourceSuperJob }

// Attempt 逐行匹配标签，所有字段填满后提前结束
func (p *SuperJobParser) Attempt(lines []string) *types.CandidateRecord {
	rec := &types.CandidateRecord{SourceSite: types.SourceSuperJob}
	sexSeen := false

	for _, line := range lines {
		if superJobFullyFilled(rec, sexSeen) {
			break
		}
		if rec.FirstName == nil {
			if v, ok := normalize.LabelValue(line, "ФИО:"); ok {
				normalize.SplitFullName(v).Apply(rec)
				continue
			}
		}
		if !sexSeen {
			if v, ok := normalize.LabelValue(line, "Пол:"); ok {
				rec.Sex = normalize.DetectSex(v)
				sexSeen = true
				continue
			}
		}
		if rec.BirthDate == nil {
			if d := labeledBirthDate(line, normalize.RuFull); d != nil {
				rec.BirthDate = d
				continue
			}
		}
		if rec.Email == nil {
			if e := labeledEmail(line); e != nil {
				rec.Email = e
				continue
			}
		}
		if rec.Phone == nil {
			if v, ok := normalize.LabelValue(line, "Телефон:", "Мобильный телефон:"); ok {
				rec.Phone = normalize.FindPhone(v)
				if rec.Phone == nil {
					rec.Phone = normalize.NormalizePhone(v)
				}
				continue
			}
		}
		if rec.Address == nil {
			if v := labeled(line, "Город:"); v != nil {
				rec.Address = v
				continue
			}
		}
		if rec.DesiredPosition == nil {
			if v := labeled(line, "Желаемая должность:"); v != nil {
				rec.DesiredPosition = v
				continue
			}
		}
		if rec.Salary == nil {
			if v, ok := normalize.LabelValue(line, "Желаемая зарплата:", "Зарплата:"); ok {
				rec.Salary = normalize.ParseSalary(v)
			}
		}
	}

	if !rec.RequiredFilled() {
		return nil
	}
	return rec
}

func superJobFullyFilled(r *types.CandidateRecord, sexSeen bool) bool {
	return r.FirstName != nil && sexSeen && r.BirthDate != nil && r.Email != nil &&
		r.Phone != nil && r.Address != nil && r.DesiredPosition != nil && r.Salary != nil
}
