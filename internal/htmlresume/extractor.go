// Package htmlresume 从招聘网站导出的HTML简历中提取结构化模型，
// 再映射为统一的候选人记录。定位规则是配置数据，见 selectors.yaml。
package htmlresume

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"resume-ingest-go/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoSelectors 来源没有配置定位规则
var ErrNoSelectors = errors.New("来源没有配置HTML定位规则")

// Extractor 按来源的定位规则提取HTMLResume，构造后只读
type Extractor struct {
	selectors SelectorSet
}

// NewExtractor set为nil时使用内置规则
func NewExtractor(set SelectorSet) *Extractor {
	if set == nil {
		set = DefaultSelectors()
	}
	return &Extractor{selectors: set}
}

// ParseDocument 解析HTML字节
func ParseDocument(data []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}
	return doc, nil
}

// Extract 提取中间模型
func (e *Extractor) Extract(doc *goquery.Document, source types.SourceSite) (*types.HTMLResume, error) {
	sel, ok := e.selectors[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSelectors, source)
	}
	root := doc.Selection

	model := &types.HTMLResume{
		VacancyTitle:     first(root, sel.VacancyTitle),
		SalaryText:       first(root, sel.SalaryText),
		FullName:         first(root, sel.FullName),
		GenderText:       first(root, sel.GenderText),
		Age:              first(root, sel.Age),
		BirthDateText:    first(root, sel.BirthDate),
		Locality:         first(root, sel.Locality),
		Metro:            first(root, sel.Metro),
		Email:            first(root, sel.Email),
		Phone:            first(root, sel.Phone),
		PreferredContact: first(root, sel.PreferredContact),

		AlternateContacts: all(root, sel.AlternateContacts),

		SpecializationCategory: first(root, sel.SpecializationCategory),
		Specializations:        all(root, sel.Specializations),

		Skills: all(root, sel.Skills),
		About:  first(root, sel.About),

		EducationSummary:    first(root, sel.EducationSummary),
		Languages:           all(root, sel.Languages),
		AdditionalEducation: all(root, sel.AdditionalEducation),
		Examinations:        all(root, sel.Examinations),

		Citizenship: first(root, sel.Citizenship),
		PhotoURL:    first(root, sel.Photo),
	}

	if sel.Experience.Item != "" {
		root.Find(sel.Experience.Item).Each(func(_ int, item *goquery.Selection) {
			entry := types.ExperienceEntry{
				Position:    first(item, sel.Experience.Position),
				Description: first(item, sel.Experience.Description),
				Interval:    first(item, sel.Experience.Interval),
				Company:     first(item, sel.Experience.Company),
				Locality:    first(item, sel.Experience.Locality),
				Dates:       first(item, sel.Experience.Dates),
			}
			if entry != (types.ExperienceEntry{}) {
				model.Experience = append(model.Experience, entry)
			}
		})
	}

	if sel.Education.Item != "" {
		root.Find(sel.Education.Item).Each(func(_ int, item *goquery.Selection) {
			entry := types.EducationEntry{
				Name:         first(item, sel.Education.Name),
				Organization: first(item, sel.Education.Organization),
				Dates:        first(item, sel.Education.Dates),
			}
			if entry != (types.EducationEntry{}) {
				model.Education = append(model.Education, entry)
			}
		})
	}

	return model, nil
}

// ExtractRecord 解析、提取并映射，HTML路径的完整入口
func (e *Extractor) ExtractRecord(data []byte, source types.SourceSite) (*types.CandidateRecord, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	model, err := e.Extract(doc, source)
	if err != nil {
		return nil, err
	}
	return Map(model, source), nil
}

// splitRule 把 "selector@attr" 拆成选择器和属性名
func splitRule(rule string) (string, string) {
	idx := strings.LastIndex(rule, "@")
	if idx < 0 || strings.ContainsAny(rule[idx:], " ]\"'") {
		return rule, ""
	}
	return rule[:idx], rule[idx+1:]
}

func value(s *goquery.Selection, attr string) string {
	if attr != "" {
		v, _ := s.Attr(attr)
		return collapse(v)
	}
	return collapse(s.Text())
}

// first 第一个匹配元素的文本或属性，规则为空时返回空串
func first(root *goquery.Selection, rule string) string {
	if rule == "" {
		return ""
	}
	selector, attr := splitRule(rule)
	return value(root.Find(selector).First(), attr)
}

// all 所有匹配元素的非空文本
func all(root *goquery.Selection, rule string) []string {
	if rule == "" {
		return nil
	}
	selector, attr := splitRule(rule)
	var out []string
	root.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v := value(s, attr); v != "" {
			out = append(out, v)
		}
	})
	return out
}

// collapse 合并连续空白（含不换行空格）
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
