package board

import (
	"fmt"
	"time"

	"golang.org/x/net/html"
)

// Glassdoor extracts from Glassdoor job listing cards.
type Glassdoor struct {
	san *Sanitizer
}

// NewGlassdoor creates the Glassdoor extractor.
func NewGlassdoor() *Glassdoor {
	return &Glassdoor{san: NewSanitizer()}
}

func (e *Glassdoor) Board() string { return "glassdoor" }

func (e *Glassdoor) Extract(raw []byte) ([]Item, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("glassdoor: parse: %w", err)
	}

	cards := findAll(doc, func(n *html.Node) bool {
		return attr(n, "data-test") == "jobListing"
	})

	now := time.Now()
	var items []Item
	for _, card := range cards {
		title := nodeText(findFirst(card, func(n *html.Node) bool {
			return attr(n, "data-test") == "job-title"
		}))
		company := nodeText(findFirst(card, func(n *html.Node) bool {
			return attr(n, "data-test") == "employer-name" || hasClass(n, "EmployerProfile_compactEmployerName__9MGcV")
		}))
		location := nodeText(findFirst(card, func(n *html.Node) bool {
			return attr(n, "data-test") == "emp-location"
		}))
		if title == "" || company == "" {
			continue
		}

		var link string
		if a := findFirst(card, func(n *html.Node) bool {
			return attr(n, "data-test") == "job-title" && n.Data == "a"
		}); a != nil {
			link = attr(a, "href")
		}

		items = append(items, Item{
			Title:       title,
			Company:     company,
			Location:    location,
			Link:        link,
			Salary:      normalizeSalary(nodeText(findFirst(card, func(n *html.Node) bool { return attr(n, "data-test") == "detailSalary" }))),
			Source:      "glassdoor",
			NaturalKey:  attr(card, "data-jobid"),
			CollectedAt: now,
			Status:      StatusPending,
		})
	}
	return items, nil
}

func (e *Glassdoor) ExtractDetail(raw []byte) (*Detail, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("glassdoor: parse detail: %w", err)
	}

	salary, jobType := extractJSONLD(doc)

	descNode := findFirst(doc, func(n *html.Node) bool {
		return attr(n, "data-test") == "jobDescriptionContent" || hasClass(n, "JobDetails_jobDescription__uW_fK")
	})
	desc := e.san.Markdown(renderHTML(descNode), "https://www.glassdoor.com", nodeText(descNode))

	return &Detail{Salary: salary, JobType: jobType, Description: desc}, nil
}
