package board

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Indeed extracts from Indeed search result cards and detail pages.
type Indeed struct {
	san *Sanitizer
}

// NewIndeed creates the Indeed extractor.
func NewIndeed() *Indeed {
	return &Indeed{san: NewSanitizer()}
}

func (e *Indeed) Board() string { return "indeed" }

// Extract parses a search results page. Result cards are the elements
// carrying a data-jk posting id; titles, company and location live in
// data-testid-tagged children.
func (e *Indeed) Extract(raw []byte) ([]Item, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("indeed: parse: %w", err)
	}

	cards := findAll(doc, func(n *html.Node) bool {
		return attr(n, "data-jk") != ""
	})

	now := time.Now()
	var items []Item
	seen := make(map[string]bool)
	for _, card := range cards {
		jk := attr(card, "data-jk")
		if seen[jk] {
			continue
		}
		seen[jk] = true

		title := nodeText(findFirst(card, func(n *html.Node) bool {
			return hasClass(n, "jobTitle") || strings.HasPrefix(attr(n, "id"), "jobTitle")
		}))
		company := nodeText(findFirst(card, func(n *html.Node) bool {
			return attr(n, "data-testid") == "company-name" || hasClass(n, "companyName")
		}))
		location := nodeText(findFirst(card, func(n *html.Node) bool {
			return attr(n, "data-testid") == "text-location" || hasClass(n, "companyLocation")
		}))
		if title == "" || company == "" {
			continue
		}

		salary, jobType := classifyAttribute(nodeText(findFirst(card, func(n *html.Node) bool {
			return attr(n, "data-testid") == "attribute_snippet_testid" || hasClass(n, "salary-snippet-container")
		})))

		items = append(items, Item{
			Title:       title,
			Company:     company,
			Location:    location,
			Link:        "https://www.indeed.com/viewjob?jk=" + jk,
			Salary:      salary,
			JobType:     jobType,
			Source:      "indeed",
			NaturalKey:  jk,
			CollectedAt: now,
			Status:      StatusPending,
		})
	}
	return items, nil
}

// ExtractDetail parses a posting detail page. JSON-LD wins; the visible
// salary header is the fallback.
func (e *Indeed) ExtractDetail(raw []byte) (*Detail, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("indeed: parse detail: %w", err)
	}

	salary, jobType := extractJSONLD(doc)
	if salary == "" {
		salary = normalizeSalary(nodeText(findFirst(doc, func(n *html.Node) bool {
			dt := attr(n, "data-testid")
			return dt == "jobsearch-JobInfoHeader-salary" || dt == "salary-snippet"
		})))
	}
	if jobType == "" {
		_, jobType = classifyAttribute(nodeText(findFirst(doc, func(n *html.Node) bool {
			return attr(n, "data-testid") == "jobsearch-JobInfoHeader-jobType"
		})))
	}

	descNode := findFirst(doc, func(n *html.Node) bool {
		return attr(n, "id") == "jobDescriptionText"
	})
	desc := e.san.Markdown(renderHTML(descNode), "https://www.indeed.com", nodeText(descNode))

	return &Detail{Salary: salary, JobType: jobType, Description: desc}, nil
}
