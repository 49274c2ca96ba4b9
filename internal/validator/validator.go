// Package validator 校验候选人的联系方式，结果只用于决定是否可以自动邀请。
package validator

import (
	"regexp"
	"strings"

	"resume-ingest-go/internal/normalize"
	"resume-ingest-go/internal/types"
)

// 俄罗斯手机号：11位，以79或89开头
var mobilePhoneRe = regexp.MustCompile(`^(79|89)\d{9}$`)

// 面向招聘人员的提示文案
const (
	MsgPhoneInvalid = "Телефон не соответствует формату мобильного номера"
	MsgEmailMissing = "Не указан e-mail"
	MsgEmailInvalid = "E-mail указан в неверном формате"
)

// Validate 校验电话和邮箱，从不返回错误
func Validate(rec *types.CandidateRecord) types.ValidationResult {
	var problems []string
	result := types.ValidationResult{}

	if rec != nil && rec.Phone != nil && mobilePhoneRe.MatchString(*rec.Phone) {
		result.PhoneValid = true
	} else {
		problems = append(problems, MsgPhoneInvalid)
	}

	switch {
	case rec == nil || rec.Email == nil || strings.TrimSpace(*rec.Email) == "":
		problems = append(problems, MsgEmailMissing)
	case !normalize.IsValidEmail(*rec.Email):
		problems = append(problems, MsgEmailInvalid)
	default:
		result.EmailValid = true
	}

	result.Message = strings.Join(problems, ", ")
	return result
}
