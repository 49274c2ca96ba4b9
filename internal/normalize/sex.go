package normalize

import (
	"strings"

	"resume-ingest-go/internal/types"
)

var (
	femaleTokens = []string{"женщина", "женский", "жен.", "female", "woman"}
	maleTokens   = []string{"мужчина", "мужской", "муж.", "male"}
)

// DetectSex 按子串判断性别，先判断女性（"female"包含"male"）
func DetectSex(text string) types.Sex {
	lower := strings.ToLower(text)
	for _, t := range femaleTokens {
		if strings.Contains(lower, t) {
			return types.SexFemale
		}
	}
	for _, t := range maleTokens {
		if strings.Contains(lower, t) {
			return types.SexMale
		}
	}
	return types.SexUnknown
}
