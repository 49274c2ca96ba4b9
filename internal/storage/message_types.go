package storage

import "time"

// ResumeUploadMessage 简历上传消息，上传接口发布，入库消费者处理
type ResumeUploadMessage struct {
	SubmissionUUID      string    `json:"submission_uuid"`           // 提交UUID
	SubmissionTimestamp time.Time `json:"submission_timestamp"`      // 提交时间戳
	OriginalFilename    string    `json:"original_filename"`         // 原始文件名，决定文件格式
	OriginalFilePathOSS string    `json:"original_file_path_oss"`    // MinIO中的对象路径
	DeclaredSource      string    `json:"declared_source,omitempty"` // 来源网站代码，HTML必填
	IsHTML              bool      `json:"is_html,omitempty"`         // 调用方声明为HTML导出
	VacancyID           string    `json:"vacancy_id,omitempty"`      // 目标岗位ID
	UploaderID          string    `json:"uploader_id,omitempty"`     // 上传人
	RawFileMD5          string    `json:"raw_file_md5,omitempty"`    // 原始文件的MD5，用于失败时回滚
}

// InvitationEligibilityMessage 简历入库后发布，邀请服务据此决定是否自动联系候选人
type InvitationEligibilityMessage struct {
	ResumeID       string    `json:"resume_id"`
	SubmissionUUID string    `json:"submission_uuid"`
	VacancyID      string    `json:"vacancy_id,omitempty"`
	FirstName      string    `json:"first_name,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	PhoneValid     bool      `json:"phone_valid"`
	EmailValid     bool      `json:"email_valid"`
	Eligible       bool      `json:"eligible"`
	Message        string    `json:"message,omitempty"` // 校验未通过的原因
	ParsedAt       time.Time `json:"parsed_at"`
}

// FailedUploadNotice 处理失败的通知，供运营人员查看
type FailedUploadNotice struct {
	SubmissionUUID   string    `json:"submission_uuid"`
	OriginalFilename string    `json:"original_filename"`
	ObjectKey        string    `json:"object_key,omitempty"`
	DeclaredSource   string    `json:"declared_source,omitempty"`
	IsHTML           bool      `json:"is_html,omitempty"`
	VacancyID        string    `json:"vacancy_id,omitempty"`
	UploaderID       string    `json:"uploader_id,omitempty"`
	ErrorKind        string    `json:"error_kind"`
	UserMessage      string    `json:"user_message"` // 展示给上传人的文案
	Detail           string    `json:"detail,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}
