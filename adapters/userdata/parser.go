package userdata

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// assessmentItem is one entry of the raw assessment response.
type assessmentItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// profileData is the raw profile response payload. Pointer fields distinguish
// absent values, which are omitted from the rendered text.
type profileData struct {
	Name        *string `json:"name"`
	Grade       *string `json:"nj"`
	Class       *string `json:"bj"`
	AddressCode *string `json:"addressCode"`
	Sex         *string `json:"sex"`
	SchoolName  *string `json:"schoolName"`
}

// Category extraction from natural-language report bodies. The primary
// pattern matches the standard report sentence; the secondary pattern is a
// looser fallback. Items matching neither are skipped as unclassified.
var (
	primaryCategoryPattern   = regexp.MustCompile(`A\.\s*根据学校量表测评结果，该学生.*?情况，处于(.*?)群体`)
	secondaryCategoryPattern = regexp.MustCompile(`处于(.*?)群体`)
)

var categoryOrder = []string{"重点关注", "一般关注", "健康"}

// extractCategory pulls the concern category out of one report body.
// Returns "" when neither pattern matches.
func extractCategory(body string) string {
	if m := primaryCategoryPattern.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := secondaryCategoryPattern.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// renderAssessment groups assessment items by concern category and renders
// one "category: a, b" line per non-empty category. Duplicate item names
// collapse; names are sorted for stable output.
func renderAssessment(items []assessmentItem) string {
	groups := map[string]map[string]struct{}{}
	for _, item := range items {
		if item.Name == "" || item.Value == "" {
			continue
		}
		category := extractCategory(item.Value)
		found := false
		for _, known := range categoryOrder {
			if category == known {
				found = true
				break
			}
		}
		if !found {
			continue
		}
		if groups[category] == nil {
			groups[category] = map[string]struct{}{}
		}
		groups[category][item.Name] = struct{}{}
	}

	var lines []string
	for _, category := range categoryOrder {
		names := groups[category]
		if len(names) == 0 {
			continue
		}
		sorted := make([]string, 0, len(names))
		for name := range names {
			sorted = append(sorted, name)
		}
		sort.Strings(sorted)
		lines = append(lines, fmt.Sprintf("%s: %s", category, strings.Join(sorted, ", ")))
	}
	return strings.Join(lines, "\n")
}

var sexLabels = map[string]string{
	"1": "男",
	"2": "女",
	"0": "未知",
}

// renderProfile renders the subject profile field by field, skipping absent
// values and mapping the sex code to its label.
func renderProfile(data profileData) string {
	type field struct {
		label string
		value *string
	}
	fields := []field{
		{"姓名", data.Name},
		{"年级", data.Grade},
		{"班级", data.Class},
		{"地址", data.AddressCode},
		{"性别", data.Sex},
		{"学校名称", data.SchoolName},
	}

	var lines []string
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		value := *f.value
		if f.label == "性别" {
			if label, ok := sexLabels[value]; ok {
				value = label
			}
		}
		lines = append(lines, fmt.Sprintf("%s: %s", f.label, value))
	}
	return strings.Join(lines, "\n")
}
