package htmlresume

import (
	_ "embed"
	"fmt"
	"os"

	"resume-ingest-go/internal/types"

	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectorsYAML []byte

// SourceSelectors 一个来源的字段定位规则
// 规则是CSS选择器；以"@属性名"结尾时取属性值而不是文本，例如 `img.photo@src`
type SourceSelectors struct {
	VacancyTitle     string `yaml:"vacancy_title"`
	SalaryText       string `yaml:"salary_text"`
	FullName         string `yaml:"full_name"`
	GenderText       string `yaml:"gender_text"`
	Age              string `yaml:"age"`
	BirthDate        string `yaml:"birth_date"`
	Locality         string `yaml:"locality"`
	Metro            string `yaml:"metro"`
	Email            string `yaml:"email"`
	Phone            string `yaml:"phone"`
	PreferredContact string `yaml:"preferred_contact"`

	AlternateContacts string `yaml:"alternate_contacts"`

	SpecializationCategory string `yaml:"specialization_category"`
	Specializations        string `yaml:"specializations"`

	Experience ExperienceSelectors `yaml:"experience"`
	Skills     string              `yaml:"skills"`
	About      string              `yaml:"about"`

	EducationSummary    string             `yaml:"education_summary"`
	Education           EducationSelectors `yaml:"education"`
	Languages           string             `yaml:"languages"`
	AdditionalEducation string             `yaml:"additional_education"`
	Examinations        string             `yaml:"examinations"`

	Citizenship string `yaml:"citizenship"`
	Photo       string `yaml:"photo"`
}

// ExperienceSelectors 工作经历条目，子选择器相对于Item
type ExperienceSelectors struct {
	Item        string `yaml:"item"`
	Position    string `yaml:"position"`
	Description string `yaml:"description"`
	Interval    string `yaml:"interval"`
	Company     string `yaml:"company"`
	Locality    string `yaml:"locality"`
	Dates       string `yaml:"dates"`
}

// EducationSelectors 教育经历条目，子选择器相对于Item
type EducationSelectors struct {
	Item         string `yaml:"item"`
	Name         string `yaml:"name"`
	Organization string `yaml:"organization"`
	Dates        string `yaml:"dates"`
}

// SelectorSet 各来源的定位规则
type SelectorSet map[types.SourceSite]SourceSelectors

// ParseSelectors 解析YAML格式的定位规则
func ParseSelectors(data []byte) (SelectorSet, error) {
	raw := make(map[string]SourceSelectors)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("解析定位规则失败: %w", err)
	}
	set := make(SelectorSet, len(raw))
	for code, sel := range raw {
		source := types.SourceSite(code)
		if !source.IsKnown() {
			return nil, fmt.Errorf("定位规则中的来源 %q 未知", code)
		}
		set[source] = sel
	}
	return set, nil
}

// DefaultSelectors 内置的定位规则
func DefaultSelectors() SelectorSet {
	set, err := ParseSelectors(defaultSelectorsYAML)
	if err != nil {
		// 内置文件随代码发布，解析失败属于构建错误
		panic(err)
	}
	return set
}

// LoadSelectors 在内置规则之上叠加文件中的规则，按来源整体替换
// path为空时只返回内置规则
func LoadSelectors(path string) (SelectorSet, error) {
	set := DefaultSelectors()
	if path == "" {
		return set, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取定位规则文件失败: %w", err)
	}
	overrides, err := ParseSelectors(data)
	if err != nil {
		return nil, err
	}
	for source, sel := range overrides {
		set[source] = sel
	}
	return set, nil
}
