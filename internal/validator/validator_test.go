package validator

import (
	"strings"
	"testing"

	"resume-ingest-go/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name       string
		phone      string
		email      string
		phoneValid bool
		emailValid bool
		message    string
	}{
		{"都有效", "79123456789", "ivan@example.com", true, true, ""},
		{"8开头", "89123456789", "ivan@example.com", true, true, ""},
		{"座机", "74951234567", "ivan@example.com", false, true, MsgPhoneInvalid},
		{"位数不对", "7912345678", "ivan@example.com", false, true, MsgPhoneInvalid},
		{"缺少邮箱", "79123456789", "", true, false, MsgEmailMissing},
		{"邮箱格式错误", "79123456789", "ivan@", true, false, MsgEmailInvalid},
		{"都无效", "", "", false, false, MsgPhoneInvalid + ", " + MsgEmailMissing},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &types.CandidateRecord{
				Phone: types.StringPtr(tc.phone),
				Email: types.StringPtr(tc.email),
			}
			result := Validate(rec)
			assert.Equal(t, tc.phoneValid, result.PhoneValid)
			assert.Equal(t, tc.emailValid, result.EmailValid)
			assert.Equal(t, tc.message, result.Message)
			assert.Equal(t, tc.phoneValid && tc.emailValid, result.Valid())
		})
	}
}

func TestValidateNilRecord(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.Valid())
	assert.NotContains(t, result.Message, ", ,")
	assert.False(t, strings.HasSuffix(result.Message, ","), "消息末尾不应有分隔符")
}
