package htmlresume

import (
	"os"
	"path/filepath"
	"testing"

	"resume-ingest-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hhFixture = `<html><body>
<div data-qa="resume-personal-name"><span>Иванов   Иван
 Иванович</span></div>
<span data-qa="resume-personal-gender">Мужчина</span>
<span data-qa="resume-personal-age">34 года</span>
<span itemprop="birthDate" content="1990-03-15"></span>
<span data-qa="resume-personal-address">Москва</span>
<span data-qa="resume-personal-metro">Арбатская</span>
<div data-qa="resume-contact-phone"><span>+7 (912) 345-67-89</span></div>
<a data-qa="resume-contact-email">not-an-email</a>
<div data-qa="resume-contact-preferred">Предпочитаемый способ связи: Ivan@Example.com</div>
<h2 data-qa="resume-block-title-position"><span>Программист</span></h2>
<span data-qa="resume-block-salary">от 80000 до 120000 руб</span>
<span data-qa="resume-block-specialization-category">Информационные технологии</span>
<ul>
  <li data-qa="resume-block-position-specialization">Программист, разработчик</li>
  <li data-qa="resume-block-position-specialization">Системный администратор</li>
</ul>
<div data-qa="resume-block-experience">
  <div class="resume-block-item-gap">
    <div class="bloko-column_l-2">Март 2018 — по настоящее время</div>
    <div class="bloko-text_tertiary">6 лет</div>
    <div class="bloko-text_strong">ООО Ромашка</div>
    <div data-qa="resume-block-experience-position">Ведущий разработчик</div>
    <div data-qa="resume-block-experience-description">Разработка сервисов</div>
  </div>
  <div class="resume-block-item-gap">
    <div class="bloko-text_strong">ЗАО Лютик</div>
    <div data-qa="resume-block-experience-position">Разработчик</div>
  </div>
</div>
<span data-qa="bloko-tag__text">Go</span><span data-qa="bloko-tag__text">PostgreSQL</span>
<div data-qa="resume-block-education-item">
  <div data-qa="resume-block-education-name">МГУ</div>
  <div data-qa="resume-block-education-organization">ВМК, Прикладная математика</div>
  <div class="bloko-column_l-2">2012</div>
</div>
<img data-qa="resume-photo-image" src="/photo/123.jpg">
</body></html>`

func TestExtractHHModel(t *testing.T) {
	doc, err := ParseDocument([]byte(hhFixture))
	require.NoError(t, err)

	model, err := NewExtractor(nil).Extract(doc, types.SourceHeadHunter)
	require.NoError(t, err)

	assert.Equal(t, "Иванов Иван Иванович", model.FullName, "连续空白应合并")
	assert.Equal(t, "Программист", model.VacancyTitle)
	assert.Equal(t, "от 80000 до 120000 руб", model.SalaryText)
	assert.Equal(t, "1990-03-15", model.BirthDateText)
	assert.Equal(t, "Арбатская", model.Metro)
	assert.Equal(t, "Информационные технологии", model.SpecializationCategory)
	assert.Equal(t, []string{"Программист, разработчик", "Системный администратор"}, model.Specializations)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, model.Skills)
	assert.Equal(t, "/photo/123.jpg", model.PhotoURL)

	require.Len(t, model.Experience, 2)
	assert.Equal(t, types.ExperienceEntry{
		Position:    "Ведущий разработчик",
		Description: "Разработка сервисов",
		Interval:    "6 лет",
		Company:     "ООО Ромашка",
		Dates:       "Март 2018 — по настоящее время",
	}, model.Experience[0])
	assert.Equal(t, "ЗАО Лютик", model.Experience[1].Company)

	require.Len(t, model.Education, 1)
	assert.Equal(t, types.EducationEntry{Name: "МГУ", Organization: "ВМК, Прикладная математика", Dates: "2012"}, model.Education[0])
}

func TestExtractRecordHH(t *testing.T) {
	rec, err := NewExtractor(nil).ExtractRecord([]byte(hhFixture), types.SourceHeadHunter)
	require.NoError(t, err)

	assert.Equal(t, "Программист", types.Deref(rec.DesiredPosition))
	require.NotNil(t, rec.Salary)
	assert.Equal(t, 120000, *rec.Salary, "区间薪资应取上限")
	assert.Equal(t, "Иванов", types.Deref(rec.LastName))
	assert.Equal(t, "Иван", types.Deref(rec.FirstName))
	assert.Equal(t, "Иванович", types.Deref(rec.MiddleName))
	assert.Equal(t, "79123456789", types.Deref(rec.Phone))
	assert.Equal(t, "ivan@example.com", types.Deref(rec.Email), "邮箱字段无效时应取首选联系方式")
	assert.Equal(t, "1990-03-15", rec.BirthDate.String())
	assert.Equal(t, types.SexMale, rec.Sex)
	assert.Equal(t, "Москва", types.Deref(rec.Address))
	assert.Equal(t, "https://hh.ru/photo/123.jpg", types.Deref(rec.PhotoURL))
	assert.Equal(t, types.DocumentHTML, rec.DocumentType)
	assert.Equal(t, types.SourceHeadHunter, rec.SourceSite)
	require.NotNil(t, rec.HTML, "中间模型应保留在记录上")
	assert.Len(t, rec.HTML.Experience, 2)
}

func TestExtractUnknownSource(t *testing.T) {
	doc, err := ParseDocument([]byte(hhFixture))
	require.NoError(t, err)

	_, err = NewExtractor(SelectorSet{}).Extract(doc, types.SourceHeadHunter)
	assert.ErrorIs(t, err, ErrNoSelectors)
}

func TestMapEmailPreference(t *testing.T) {
	rec := Map(&types.HTMLResume{
		VacancyTitle: "Бухгалтер",
		FullName:     "Ольга",
		Email:        "Olga@Mail.ru",
	}, types.SourceSuperJob)
	assert.Equal(t, "olga@mail.ru", types.Deref(rec.Email))

	rec = Map(&types.HTMLResume{
		PreferredContact:  "по телефону",
		AlternateContacts: []string{"skype: olga.b", "olga@mail.ru", "second@mail.ru"},
	}, types.SourceSuperJob)
	assert.Equal(t, "olga@mail.ru", types.Deref(rec.Email), "应取其它联系方式中的第一个有效邮箱")

	rec = Map(&types.HTMLResume{AlternateContacts: []string{"skype: olga.b"}}, types.SourceSuperJob)
	assert.Nil(t, rec.Email)
}

func TestMapFields(t *testing.T) {
	rec := Map(&types.HTMLResume{
		VacancyTitle:  " Водитель ",
		SalaryText:    "45 000 руб.",
		FullName:      "Петров Пётр",
		GenderText:    "Женщина",
		BirthDateText: "15.03.1990",
		Phone:         "8 (912) 000-11-22",
	}, types.SourceAvito)

	assert.Equal(t, "Водитель", types.Deref(rec.DesiredPosition))
	assert.Equal(t, 45000, *rec.Salary)
	assert.Equal(t, "Петров", types.Deref(rec.LastName))
	assert.Nil(t, rec.MiddleName)
	assert.Equal(t, types.SexFemale, rec.Sex)
	assert.Equal(t, "1990-03-15", rec.BirthDate.String())
	assert.Equal(t, "89120001122", types.Deref(rec.Phone))
	assert.Nil(t, rec.Address)
	assert.Nil(t, rec.PhotoURL)

	empty := Map(&types.HTMLResume{}, types.SourceAvito)
	assert.Nil(t, empty.Salary)
	assert.Nil(t, empty.DesiredPosition)
	assert.False(t, empty.RequiredFilled())
}

func TestPhotoURL(t *testing.T) {
	expected := map[types.SourceSite]string{
		types.SourceHeadHunter: "https://hh.ru/p.jpg",
		types.SourceSuperJob:   "https://www.superjob.ru/p.jpg",
		types.SourceAvito:      "https://www.avito.ru/p.jpg",
		types.SourceRabota:     "https://www.rabota.ru/p.jpg",
		types.SourceZarplata:   "https://www.zarplata.ru/p.jpg",
	}
	for source, url := range expected {
		assert.Equal(t, url, types.Deref(PhotoURL(source, "/p.jpg")), string(source))
	}

	assert.Equal(t, "https://hh.ru/p.jpg", types.Deref(PhotoURL(types.SourceHeadHunter, "p.jpg")))
	assert.Equal(t, "https://img.hh.ru/p.jpg", types.Deref(PhotoURL(types.SourceHeadHunter, "https://img.hh.ru/p.jpg")))
	assert.Equal(t, "https://img.hh.ru/p.jpg", types.Deref(PhotoURL(types.SourceHeadHunter, "//img.hh.ru/p.jpg")))
	assert.Nil(t, PhotoURL(types.SourceSite("linkedin"), "/p.jpg"), "未知来源没有照片地址")
	assert.Nil(t, PhotoURL(types.SourceHeadHunter, "  "))
}

func TestSplitRule(t *testing.T) {
	sel, attr := splitRule(`[itemprop="birthDate"]@content`)
	assert.Equal(t, `[itemprop="birthDate"]`, sel)
	assert.Equal(t, "content", attr)

	sel, attr = splitRule(".resume-fio")
	assert.Equal(t, ".resume-fio", sel)
	assert.Empty(t, attr)
}

func TestDefaultSelectorsCoverAllSources(t *testing.T) {
	set := DefaultSelectors()
	for _, source := range types.KnownSources {
		sel, ok := set[source]
		require.True(t, ok, "缺少来源 %s 的定位规则", source)
		assert.NotEmpty(t, sel.VacancyTitle)
		assert.NotEmpty(t, sel.FullName)
		assert.NotEmpty(t, sel.Experience.Item)
	}
}

func TestLoadSelectorsOverride(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "selectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hh:\n  vacancy_title: '.title'\n"), 0644))

	set, err := LoadSelectors(path)
	require.NoError(t, err)
	assert.Equal(t, ".title", set[types.SourceHeadHunter].VacancyTitle)
	assert.Empty(t, set[types.SourceHeadHunter].FullName, "覆盖按来源整体替换")
	assert.Equal(t, DefaultSelectors()[types.SourceSuperJob], set[types.SourceSuperJob])

	_, err = ParseSelectors([]byte("linkedin:\n  vacancy_title: '.x'\n"))
	assert.Error(t, err)

	_, err = LoadSelectors(filepath.Join(tmpDir, "missing.yaml"))
	assert.Error(t, err)
}
