package board

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// jobPostingLD is the subset of schema.org JobPosting we read from embedded
// JSON-LD blocks. Unknown fields are ignored.
type jobPostingLD struct {
	Type           string `json:"@type"`
	Title          string `json:"title"`
	EmploymentType any    `json:"employmentType"`
	BaseSalary     *struct {
		Currency string `json:"currency"`
		Value    struct {
			MinValue float64 `json:"minValue"`
			MaxValue float64 `json:"maxValue"`
			Value    float64 `json:"value"`
			UnitText string  `json:"unitText"`
		} `json:"value"`
	} `json:"baseSalary"`
}

// extractJSONLD scans <script type="application/ld+json"> blocks for a
// JobPosting and returns (salary, jobType). Detail pages usually carry the
// authoritative salary here rather than in visible markup.
func extractJSONLD(doc *html.Node) (salary, jobType string) {
	scripts := findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Script && strings.EqualFold(attr(n, "type"), "application/ld+json")
	})

	for _, s := range scripts {
		if s.FirstChild == nil {
			continue
		}
		raw := s.FirstChild.Data

		// Blocks may hold a single posting or an array of entities.
		var postings []jobPostingLD
		var one jobPostingLD
		if err := json.Unmarshal([]byte(raw), &one); err == nil {
			postings = append(postings, one)
		} else if err := json.Unmarshal([]byte(raw), &postings); err != nil {
			continue
		}

		for _, p := range postings {
			if !strings.EqualFold(p.Type, "JobPosting") {
				continue
			}
			if jobType == "" {
				jobType = employmentTypeString(p.EmploymentType)
			}
			if salary == "" && p.BaseSalary != nil {
				v := p.BaseSalary.Value
				salary = formatSalary(p.BaseSalary.Currency, v.MinValue, v.MaxValue, v.Value, v.UnitText)
			}
			if salary != "" || jobType != "" {
				return salary, jobType
			}
		}
	}
	return salary, jobType
}

func employmentTypeString(v any) string {
	switch t := v.(type) {
	case string:
		return titleCaseEmployment(t)
	case []any:
		var parts []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				parts = append(parts, titleCaseEmployment(s))
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func titleCaseEmployment(s string) string {
	_, label := classifyAttribute(s)
	if label != "" {
		return label
	}
	return strings.TrimSpace(s)
}

func formatSalary(currency string, min, max, value float64, unit string) string {
	symbol := currencySymbol(currency)
	lo, hi := min, max
	if lo == 0 && hi == 0 {
		lo = value
	}
	if lo == 0 && hi == 0 {
		return ""
	}

	var s string
	switch {
	case lo > 0 && hi > 0 && lo != hi:
		s = fmt.Sprintf("%s%s - %s%s", symbol, formatAmount(lo), symbol, formatAmount(hi))
	case lo > 0:
		s = symbol + formatAmount(lo)
	default:
		s = symbol + formatAmount(hi)
	}

	u := normalizeSalaryUnit(unit)
	if u != "" {
		article := "a"
		if u == "hour" {
			article = "an"
		}
		s += " " + article + " " + u
	}
	return s
}

func currencySymbol(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "", "USD":
		return "$"
	case "GBP":
		return "£"
	case "EUR":
		return "€"
	default:
		return strings.ToUpper(strings.TrimSpace(code)) + " "
	}
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return groupThousands(fmt.Sprintf("%d", int64(v)))
	}
	return fmt.Sprintf("%.2f", v)
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var sb strings.Builder
	rem := n % 3
	if rem > 0 {
		sb.WriteString(digits[:rem])
	}
	for i := rem; i < n; i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}
