package htmlresume

import (
	"strings"

	"resume-ingest-go/internal/normalize"
	"resume-ingest-go/internal/types"
)

// PhotoBaseURLs 相对照片地址的前缀
var PhotoBaseURLs = map[types.SourceSite]string{
	types.SourceHeadHunter: "https://hh.ru",
	types.SourceSuperJob:   "https://www.superjob.ru",
	types.SourceAvito:      "https://www.avito.ru",
	types.SourceRabota:     "https://www.rabota.ru",
	types.SourceZarplata:   "https://www.zarplata.ru",
}

// Map 把中间模型映射为候选人记录，模型原样挂在记录上
func Map(model *types.HTMLResume, source types.SourceSite) *types.CandidateRecord {
	rec := &types.CandidateRecord{
		SourceSite:   source,
		DocumentType: types.DocumentHTML,
		HTML:         model,
	}
	if model == nil {
		return rec
	}

	rec.DesiredPosition = types.StringPtr(normalize.CleanLine(model.VacancyTitle))
	if model.SalaryText != "" {
		rec.Salary = normalize.ParseSalary(model.SalaryText)
	}
	normalize.SplitFullName(model.FullName).Apply(rec)
	rec.Phone = types.StringPtr(normalize.StripPhone(model.Phone))
	rec.Email = pickEmail(model)
	rec.BirthDate = normalize.ParseAnyDate(model.BirthDateText)
	rec.Sex = normalize.DetectSex(model.GenderText)
	rec.Address = types.StringPtr(normalize.CleanLine(model.Locality))
	rec.PhotoURL = PhotoURL(source, model.PhotoURL)

	return rec
}

// pickEmail 依次尝试邮箱字段、首选联系方式、其它联系方式
func pickEmail(model *types.HTMLResume) *string {
	if normalize.IsValidEmail(model.Email) {
		e := strings.ToLower(strings.TrimSpace(model.Email))
		return &e
	}
	if e := normalize.ExtractEmail(model.PreferredContact); e != nil {
		return e
	}
	for _, contact := range model.AlternateContacts {
		if e := normalize.ExtractEmail(contact); e != nil {
			return e
		}
	}
	return nil
}

// PhotoURL 拼接照片地址，未知来源或空地址返回nil，已是绝对地址时原样返回
func PhotoURL(source types.SourceSite, relative string) *string {
	relative = strings.TrimSpace(relative)
	if relative == "" {
		return nil
	}
	base, ok := PhotoBaseURLs[source]
	if !ok {
		return nil
	}
	if strings.HasPrefix(relative, "http://") || strings.HasPrefix(relative, "https://") {
		return &relative
	}
	if strings.HasPrefix(relative, "//") {
		u := "https:" + relative
		return &u
	}
	if !strings.HasPrefix(relative, "/") {
		relative = "/" + relative
	}
	u := base + relative
	return &u
}
