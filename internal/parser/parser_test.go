package parser

import (
	"testing"

	"resume-ingest-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioLines() []string {
	return []string{
		"Иванов Иван Иванович",
		"Мужчина, родился 15 марта 1990",
		"",
		"ivan@example.com",
		"",
		"",
		"Желаемая должность и зарплата",
		"Программист",
		"Занятость: полная",
		"Зарплата: 50000 руб",
	}
}

func TestHHParserRussianScenario(t *testing.T) {
	rec := NewHHParser().Attempt(scenarioLines())
	require.NotNil(t, rec)

	assert.Equal(t, "Иванов", types.Deref(rec.LastName))
	assert.Equal(t, "Иван", types.Deref(rec.FirstName))
	assert.Equal(t, "Иванович", types.Deref(rec.MiddleName))
	assert.Equal(t, types.SexMale, rec.Sex)
	require.NotNil(t, rec.BirthDate)
	assert.Equal(t, "1990-03-15", rec.BirthDate.String())
	assert.Equal(t, "ivan@example.com", types.Deref(rec.Email))
	require.NotNil(t, rec.Salary)
	assert.Equal(t, 50000, *rec.Salary)
	assert.Equal(t, "Программист", types.Deref(rec.DesiredPosition))
	assert.Nil(t, rec.Phone)
	assert.Equal(t, types.SourceHeadHunter, rec.SourceSite)
}

func TestHHParserEnglish(t *testing.T) {
	lines := []string{
		"Ivan Petrov",
		"Male, 33 years, born on 15 March 1990",
		"+7 (912) 345-67-89",
		"ivan@example.com",
		"Reside: Moscow",
		"Desired position and salary",
		"Developer",
		"150 000 rub.",
		"Employment: full time",
	}
	rec := NewHHParser().Attempt(lines)
	require.NotNil(t, rec)

	assert.Equal(t, "Petrov", types.Deref(rec.FirstName))
	assert.Equal(t, "Ivan", types.Deref(rec.LastName))
	assert.Equal(t, types.SexMale, rec.Sex)
	assert.Equal(t, "1990-03-15", rec.BirthDate.String())
	assert.Equal(t, "79123456789", types.Deref(rec.Phone))
	assert.Equal(t, "Moscow", types.Deref(rec.Address))
	assert.Equal(t, "Developer", types.Deref(rec.DesiredPosition), "薪资行不应并入职位")
	require.NotNil(t, rec.Salary)
	assert.Equal(t, 150000, *rec.Salary)
}

func TestHHParserMultiLinePositionAndExperience(t *testing.T) {
	lines := []string{
		"Сидорова Анна",
		"Женщина, 30 лет, родилась 1 января 1994",
		"8 912 000 11 22",
		"Проживает: Тверь",
		"Желаемая должность и зарплата",
		"Менеджер",
		"Руководитель отдела",
		"80 000 руб.",
		"Занятость: полная",
	}
	rec := NewHHParser().Attempt(lines)
	require.NotNil(t, rec)
	assert.Equal(t, "Менеджер, Руководитель отдела", types.Deref(rec.DesiredPosition))
	assert.Equal(t, 80000, *rec.Salary)
	assert.Equal(t, types.SexFemale, rec.Sex)
	assert.Equal(t, "79120001122", types.Deref(rec.Phone))
	assert.Equal(t, "Тверь", types.Deref(rec.Address))

	lines = []string{
		"Петров Пётр",
		"Мужчина",
		"Желаемая должность и зарплата",
		"Водитель",
		"Занятость: полная",
		"Опыт работы 12 лет",
		"70000",
	}
	rec = NewHHParser().Attempt(lines)
	require.NotNil(t, rec)
	assert.Equal(t, "Водитель", types.Deref(rec.DesiredPosition))
	require.NotNil(t, rec.Salary, "应跳过提到工作经验的行")
	assert.Equal(t, 70000, *rec.Salary)
}

func TestHHParserNoMarker(t *testing.T) {
	assert.Nil(t, NewHHParser().Attempt([]string{"Иванов Иван", "Программист"}))
	assert.Nil(t, NewHHParser().Attempt(nil))

	// 有锚点但没有名字
	assert.Nil(t, NewHHParser().Attempt([]string{"", "Желаемая должность и зарплата", "Программист"}))
}

func avitoLines() []string {
	return []string{
		"Резюме с Avito",
		"Кандидат",
		"Петров Петр Петрович",
		"Дата рождения: 05 апр 1985",
		"Адрес: Москва, ул. Ленина 1",
		"Телефон: 0 912 345 67 89",
		"E-mail: Petr@Mail.ru",
		"Желаемая должность: Менеджер по продажам 45000",
	}
}

func TestAvitoParser(t *testing.T) {
	rec := NewAvitoParser().Attempt(avitoLines())
	require.NotNil(t, rec)

	assert.Equal(t, "Петров", types.Deref(rec.LastName))
	assert.Equal(t, "Петр", types.Deref(rec.FirstName))
	assert.Equal(t, "Петрович", types.Deref(rec.MiddleName))
	assert.Equal(t, "1985-04-05", rec.BirthDate.String())
	assert.Equal(t, "Москва, ул. Ленина 1", types.Deref(rec.Address))
	assert.Equal(t, "79123456789", types.Deref(rec.Phone), "开头的0应改写为国家代码")
	assert.Equal(t, "petr@mail.ru", types.Deref(rec.Email))
	assert.Equal(t, "Менеджер по продажам", types.Deref(rec.DesiredPosition))
	require.NotNil(t, rec.Salary)
	assert.Equal(t, 45000, *rec.Salary)
}

func TestAvitoParserRejectsForeignFooter(t *testing.T) {
	lines := append(avitoLines(), "Резюме предоставлено сайтом hh.ru")
	assert.Nil(t, NewAvitoParser().Attempt(lines))

	lines = append(avitoLines(), "HeadHunter", "Москва, 2024")
	assert.Nil(t, NewAvitoParser().Attempt(lines), "末尾的无标签行按页脚处理")
}

func TestAvitoParserIgnoresHHMentionsOutsideFooter(t *testing.T) {
	lines := avitoLines()
	lines[6] = "E-mail: petrov@hh.ru"
	lines = append(lines,
		"Опыт работы",
		"2019-2023 менеджер по продажам в HeadHunter",
		"Ключевые навыки",
		"Переговоры",
		"Навыки: CRM, холодные звонки",
		"Рекомендации: hh.ru/resume/123",
	)

	rec := NewAvitoParser().Attempt(lines)
	require.NotNil(t, rec, "邮箱和正文中提到hh.ru不应拒绝Avito简历")
	assert.Equal(t, "petrov@hh.ru", types.Deref(rec.Email))
	assert.Equal(t, "Менеджер по продажам", types.Deref(rec.DesiredPosition))
}

func TestAvitoParserWithoutBanner(t *testing.T) {
	lines := avitoLines()[1:]
	rec := NewAvitoParser().Attempt(lines)
	require.NotNil(t, rec, "没有抬头时首行即为内容起点")
	assert.Equal(t, "Петр", types.Deref(rec.FirstName))

	// 偏移不对时没有结果
	assert.Nil(t, NewAvitoParser().Attempt(lines[1:]))
}

func superJobLines() []string {
	return []string{
		"Резюме",
		"Желаемая должность: Бухгалтер",
		"Зарплата: от 40000 до 60000 руб.",
		"ФИО: Смирнова Ольга Викторовна",
		"Пол: женский",
		"Дата рождения: 3 февраля 1992",
		"Город: Казань",
		"Телефон: 8 (917) 123-45-67",
		"Электронная почта: olga@yandex.ru",
	}
}

func TestSuperJobParser(t *testing.T) {
	rec := NewSuperJobParser().Attempt(superJobLines())
	require.NotNil(t, rec)

	assert.Equal(t, "Смирнова", types.Deref(rec.LastName))
	assert.Equal(t, "Ольга", types.Deref(rec.FirstName))
	assert.Equal(t, types.SexFemale, rec.Sex)
	assert.Equal(t, "1992-02-03", rec.BirthDate.String())
	assert.Equal(t, "Казань", types.Deref(rec.Address))
	assert.Equal(t, "79171234567", types.Deref(rec.Phone))
	assert.Equal(t, "olga@yandex.ru", types.Deref(rec.Email))
	assert.Equal(t, "Бухгалтер", types.Deref(rec.DesiredPosition))
	require.NotNil(t, rec.Salary)
	assert.Equal(t, 60000, *rec.Salary)
}

func TestSuperJobParserRequiresPosition(t *testing.T) {
	assert.Nil(t, NewSuperJobParser().Attempt([]string{"ФИО: Смирнова Ольга"}))
}

func rabotaLines() []string {
	return []string{
		"rabota.ru",
		"Резюме",
		"Кузнецов Алексей",
		"Инженер-конструктор",
		"Телефон: +7 903 111 22 33",
		"E-mail: alex@rabota.ru",
		"Дата рождения: 12 июля 1988",
		"Город: Самара",
		"Адрес: ул. Победы, 5",
	}
}

func TestRabotaParser(t *testing.T) {
	rec := NewRabotaParser().Attempt(rabotaLines())
	require.NotNil(t, rec)

	assert.Equal(t, "Кузнецов", types.Deref(rec.LastName))
	assert.Equal(t, "Алексей", types.Deref(rec.FirstName))
	assert.Equal(t, "Инженер-конструктор", types.Deref(rec.DesiredPosition))
	assert.Equal(t, "79031112233", types.Deref(rec.Phone))
	assert.Equal(t, "alex@rabota.ru", types.Deref(rec.Email))
	assert.Equal(t, "1988-07-12", rec.BirthDate.String())
	assert.Equal(t, "Самара, ул. Победы, 5", types.Deref(rec.Address))
}

func TestRabotaParserNeedsLabels(t *testing.T) {
	assert.Nil(t, NewRabotaParser().Attempt([]string{"a", "b", "Кузнецов Алексей", "Инженер"}))
	assert.Nil(t, NewRabotaParser().Attempt([]string{"a", "b"}))
}

func TestChainDefaultOrderPicksMatchingVariant(t *testing.T) {
	parsers, err := ParsersByName(nil)
	require.NoError(t, err)
	chain := NewChain(parsers)
	assert.Equal(t, DefaultOrder, chain.Sources())

	testCases := []struct {
		name     string
		lines    []string
		expected types.SourceSite
	}{
		{"hh", scenarioLines(), types.SourceHeadHunter},
		{"avito", avitoLines(), types.SourceAvito},
		{"superjob", superJobLines(), types.SourceSuperJob},
		{"rabota", rabotaLines(), types.SourceRabota},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := chain.Resolve(tc.lines, types.DocumentRTF)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, rec.SourceSite)
			assert.Equal(t, types.DocumentRTF, rec.DocumentType, "成功的记录应标记文档类型")
		})
	}
}

// MockParser 可控的解析器
type MockParser struct {
	source types.SourceSite
	result *types.CandidateRecord
	panics bool
	calls  int
}

func (m *MockParser) Source() types.SourceSite { return m.source }

func (m *MockParser) Attempt(lines []string) *types.CandidateRecord {
	m.calls++
	if m.panics {
		var arr []string
		_ = arr[len(lines)+10]
	}
	return m.result
}

func filledRecord(source types.SourceSite) *types.CandidateRecord {
	return &types.CandidateRecord{
		FirstName:       types.StringPtr("Иван"),
		DesiredPosition: types.StringPtr("Программист"),
		SourceSite:      source,
	}
}

func TestChainOrderIsRespected(t *testing.T) {
	first := &MockParser{source: types.SourceSuperJob, result: filledRecord(types.SourceSuperJob)}
	second := &MockParser{source: types.SourceHeadHunter, result: filledRecord(types.SourceHeadHunter)}

	rec, err := NewChain([]SourceParser{first, second}).Resolve([]string{"x"}, types.DocumentDOC)
	require.NoError(t, err)
	assert.Equal(t, types.SourceSuperJob, rec.SourceSite)
	assert.Equal(t, 0, second.calls, "第一个成功后不应继续尝试")
}

// 同时满足SuperJob标签版式和Rabota.ru固定行版式的文本
func ambiguousLines() []string {
	return []string{
		"Резюме",
		"Обновлено 01.05.2024",
		"Иванов Иван Иванович",
		"Программист",
		"ФИО: Иванов Иван Иванович",
		"Желаемая должность: Программист",
		"Телефон: +7 (916) 123-45-67",
		"E-mail: ivanov@mail.ru",
		"Город: Москва",
	}
}

func TestChainOrderDecidesBetweenRealParsers(t *testing.T) {
	superJob, rabota := NewSuperJobParser(), NewRabotaParser()
	require.NotNil(t, superJob.Attempt(ambiguousLines()), "SuperJob应能单独解析")
	require.NotNil(t, rabota.Attempt(ambiguousLines()), "Rabota.ru应能单独解析")

	rec, err := NewChain([]SourceParser{superJob, rabota}).Resolve(ambiguousLines(), types.DocumentDOC)
	require.NoError(t, err)
	assert.Equal(t, types.SourceSuperJob, rec.SourceSite)

	rec, err = NewChain([]SourceParser{rabota, superJob}).Resolve(ambiguousLines(), types.DocumentDOC)
	require.NoError(t, err)
	assert.Equal(t, types.SourceRabota, rec.SourceSite, "交换顺序后胜出的解析器也应交换")
	assert.Equal(t, "Иван", types.Deref(rec.FirstName))
	assert.Equal(t, "79161234567", types.Deref(rec.Phone))
}

func TestChainRecoversPanicAndSkipsPartial(t *testing.T) {
	panicking := &MockParser{source: types.SourceHeadHunter, panics: true}
	partial := &MockParser{source: types.SourceAvito, result: &types.CandidateRecord{FirstName: types.StringPtr("Иван")}}
	good := &MockParser{source: types.SourceRabota, result: filledRecord(types.SourceRabota)}

	rec, err := NewChain([]SourceParser{panicking, partial, good}).Resolve([]string{"x"}, types.DocumentDOC)
	require.NoError(t, err, "panic不应中断解析链")
	assert.Equal(t, types.SourceRabota, rec.SourceSite)
	assert.Equal(t, 1, panicking.calls)
	assert.Equal(t, 1, partial.calls)
}

func TestChainNoParserMatched(t *testing.T) {
	parsers, err := ParsersByName(nil)
	require.NoError(t, err)

	_, err = NewChain(parsers).Resolve([]string{"просто текст", "без структуры"}, types.DocumentTXT)
	assert.ErrorIs(t, err, ErrNoParserMatched)

	_, err = NewChain(nil).Resolve(nil, types.DocumentTXT)
	assert.ErrorIs(t, err, ErrNoParserMatched)
}

func TestChainIsIdempotent(t *testing.T) {
	parsers, err := ParsersByName(nil)
	require.NoError(t, err)
	chain := NewChain(parsers)

	a, err := chain.Resolve(scenarioLines(), types.DocumentRTF)
	require.NoError(t, err)
	b, err := chain.Resolve(scenarioLines(), types.DocumentRTF)
	require.NoError(t, err)
	assert.Equal(t, a, b, "同样的输入应得到完全相同的记录")
}

func TestParsersByName(t *testing.T) {
	parsers, err := ParsersByName([]string{"superjob", " HH "})
	require.NoError(t, err)
	assert.Equal(t, []types.SourceSite{types.SourceSuperJob, types.SourceHeadHunter}, NewChain(parsers).Sources())

	_, err = ParsersByName([]string{"linkedin"})
	assert.Error(t, err)

	_, err = ParsersByName([]string{"hh", "hh"})
	assert.Error(t, err)
}
