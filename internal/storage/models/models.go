package models

import (
	"time"

	"gorm.io/datatypes"
)

// CandidateResume 解析入库的候选人简历
type CandidateResume struct {
	ResumeID        string          `gorm:"type:char(36);primaryKey"`
	FirstName       *string         `gorm:"type:varchar(255)"`
	LastName        *string         `gorm:"type:varchar(255);index:idx_cr_last_name"`
	MiddleName      *string         `gorm:"type:varchar(255)"`
	Sex             string          `gorm:"type:varchar(10)"`
	BirthDate       *datatypes.Date `gorm:"type:date"`
	Email           *string         `gorm:"type:varchar(255);index:idx_cr_email"`
	Phone           *string         `gorm:"type:varchar(32);index:idx_cr_phone"`
	Address         *string         `gorm:"type:varchar(512)"`
	DesiredPosition *string         `gorm:"type:varchar(512)"`
	Salary          *int
	SourceSite      string         `gorm:"type:varchar(32);index:idx_cr_source_site"`
	DocumentType    string         `gorm:"type:varchar(16)"`
	PhotoURL        *string        `gorm:"type:varchar(1024)"`
	HTMLModel       datatypes.JSON `gorm:"type:json"` // 仅HTML来源，完整的中间模型
	PhoneValid      bool
	EmailValid      bool
	VacancyID       *string   `gorm:"type:varchar(64);index:idx_cr_vacancy_id"`
	UploaderID      string    `gorm:"type:varchar(64)"`
	CreatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (CandidateResume) TableName() string {
	return "candidate_resumes"
}

// FailedUpload 处理失败的上传，供运营人员排查
type FailedUpload struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement"`
	SubmissionUUID   string    `gorm:"type:char(36);index:idx_fu_submission_uuid"`
	OriginalFilename string    `gorm:"type:varchar(255)"`
	ObjectKey        string    `gorm:"type:varchar(1024)"`
	DeclaredSource   string    `gorm:"type:varchar(32)"`
	IsHTML           bool      `gorm:"type:tinyint(1);default:0"`
	VacancyID        *string   `gorm:"type:varchar(64)"`
	UploaderID       string    `gorm:"type:varchar(64);index:idx_fu_uploader_id"`
	ErrorKind        string    `gorm:"type:varchar(32);index:idx_fu_error_kind"`
	UserMessage      string    `gorm:"type:varchar(255)"`
	Detail           string    `gorm:"type:text"`
	OccurredAt       time.Time `gorm:"type:datetime(6)"`
	CreatedAt        time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (FailedUpload) TableName() string {
	return "failed_uploads"
}
