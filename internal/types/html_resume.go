package types

// HTMLResume HTML简历的结构化中间模型
// 由各来源的定位规则提取，映射为CandidateRecord后原样保留
type HTMLResume struct {
	VacancyTitle     string `json:"vacancy_title,omitempty"`
	SalaryText       string `json:"salary_text,omitempty"`
	FullName         string `json:"full_name,omitempty"`
	GenderText       string `json:"gender_text,omitempty"`
	Age              string `json:"age,omitempty"`
	BirthDateText    string `json:"birth_date_text,omitempty"`
	Locality         string `json:"locality,omitempty"`
	Metro            string `json:"metro,omitempty"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	PreferredContact string `json:"preferred_contact,omitempty"`

	AlternateContacts []string `json:"alternate_contacts,omitempty"`

	SpecializationCategory string   `json:"specialization_category,omitempty"`
	Specializations        []string `json:"specializations,omitempty"`

	Experience []ExperienceEntry `json:"experience,omitempty"`
	Skills     []string          `json:"skills,omitempty"`
	About      string            `json:"about,omitempty"`

	EducationSummary    string           `json:"education_summary,omitempty"`
	Education           []EducationEntry `json:"education,omitempty"`
	Languages           []string         `json:"languages,omitempty"`
	AdditionalEducation []string         `json:"additional_education,omitempty"`
	Examinations        []string         `json:"examinations,omitempty"`

	Citizenship string `json:"citizenship,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"` // 相对路径
}

// ExperienceEntry 工作经历
type ExperienceEntry struct {
	Position    string `json:"position,omitempty"`
	Description string `json:"description,omitempty"`
	Interval    string `json:"interval,omitempty"`
	Company     string `json:"company,omitempty"`
	Locality    string `json:"locality,omitempty"`
	Dates       string `json:"dates,omitempty"`
}

// EducationEntry 教育经历
type EducationEntry struct {
	Name         string `json:"name,omitempty"`
	Organization string `json:"organization,omitempty"`
	Dates        string `json:"dates,omitempty"`
}
