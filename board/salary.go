package board

import (
	"regexp"
	"strings"
)

var salaryPattern = regexp.MustCompile(
	`(?i)(?:\b(?:estimated|from|up to|starting at|starting from)\b\s+)?` +
		`([$£€])\s?(\d[\d,]*(?:\.\d+)?)` +
		`(?:\s*-\s*[$£€]?\s?(\d[\d,]*(?:\.\d+)?))?` +
		`\s*(?:an?|per)?\s*(hour|year|yr|month|week|day)\b`)

var jobTypeLabels = []struct {
	needle string
	label  string
}{
	{"full-time", "Full-time"},
	{"full_time", "Full-time"},
	{"part-time", "Part-time"},
	{"part_time", "Part-time"},
	{"contract", "Contract"},
	{"temporary", "Temporary"},
	{"internship", "Internship"},
	{"seasonal", "Seasonal"},
	{"apprenticeship", "Apprenticeship"},
}

// normalizeSalary extracts a canonical salary string from free text, or ""
// when no salary-shaped fragment is present.
func normalizeSalary(text string) string {
	if text == "" {
		return ""
	}
	normalized := strings.Join(strings.Fields(text), " ")
	m := salaryPattern.FindStringSubmatch(normalized)
	if m == nil {
		return ""
	}
	currency, low, high, unit := m[1], m[2], m[3], normalizeSalaryUnit(m[4])

	s := currency + low
	if high != "" {
		s += " - " + currency + high
	}
	if unit != "" {
		article := "a"
		if unit == "hour" {
			article = "an"
		}
		s += " " + article + " " + unit
	}
	return s
}

func normalizeSalaryUnit(unit string) string {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "yr", "year":
		return "year"
	case "hr", "hour":
		return "hour"
	default:
		return strings.ToLower(strings.TrimSpace(unit))
	}
}

// classifyAttribute splits a posting attribute blob into (salary, jobType).
// Board pages mix both into the same metadata chips.
func classifyAttribute(text string) (salary, jobType string) {
	if text == "" {
		return "", ""
	}
	normalized := strings.Join(strings.Fields(text), " ")
	lower := strings.ToLower(normalized)

	var types []string
	for _, jt := range jobTypeLabels {
		if strings.Contains(lower, jt.needle) && !contains(types, jt.label) {
			types = append(types, jt.label)
		}
	}
	return normalizeSalary(normalized), strings.Join(types, ", ")
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
