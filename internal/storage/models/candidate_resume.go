package models

import (
	"encoding/json"
	"time"

	"resume-ingest-go/internal/types"

	"gorm.io/datatypes"
)

// FromCandidateRecord 从领域模型创建数据库模型
func FromCandidateRecord(resumeID string, rec *types.CandidateRecord, validation types.ValidationResult, vacancyID, uploaderID string) (*CandidateResume, error) {
	m := &CandidateResume{
		ResumeID:        resumeID,
		FirstName:       rec.FirstName,
		LastName:        rec.LastName,
		MiddleName:      rec.MiddleName,
		Sex:             string(rec.Sex),
		Email:           rec.Email,
		Phone:           rec.Phone,
		Address:         rec.Address,
		DesiredPosition: rec.DesiredPosition,
		Salary:          rec.Salary,
		SourceSite:      string(rec.SourceSite),
		DocumentType:    string(rec.DocumentType),
		PhotoURL:        rec.PhotoURL,
		PhoneValid:      validation.PhoneValid,
		EmailValid:      validation.EmailValid,
		VacancyID:       types.StringPtr(vacancyID),
		UploaderID:      uploaderID,
	}
	if rec.BirthDate != nil {
		d := datatypes.Date(rec.BirthDate.Time())
		m.BirthDate = &d
	}
	if rec.HTML != nil {
		b, err := json.Marshal(rec.HTML)
		if err != nil {
			return nil, err
		}
		m.HTMLModel = datatypes.JSON(b)
	}
	return m, nil
}

// ToCandidateRecord 将数据库模型转换为领域模型
func (m *CandidateResume) ToCandidateRecord() *types.CandidateRecord {
	rec := &types.CandidateRecord{
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		MiddleName:      m.MiddleName,
		Sex:             types.Sex(m.Sex),
		Email:           m.Email,
		Phone:           m.Phone,
		Address:         m.Address,
		DesiredPosition: m.DesiredPosition,
		Salary:          m.Salary,
		SourceSite:      types.SourceSite(m.SourceSite),
		DocumentType:    types.DocumentType(m.DocumentType),
		PhotoURL:        m.PhotoURL,
	}
	if m.BirthDate != nil {
		t := time.Time(*m.BirthDate)
		rec.BirthDate = types.NewDate(t.Year(), t.Month(), t.Day())
	}
	if len(m.HTMLModel) > 0 && string(m.HTMLModel) != "null" {
		var html types.HTMLResume
		if err := json.Unmarshal(m.HTMLModel, &html); err == nil {
			rec.HTML = &html
		}
	}
	return rec
}
