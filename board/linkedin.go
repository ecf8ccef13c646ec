package board

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// LinkedIn extracts from the public (logged-out) job search cards.
type LinkedIn struct {
	san *Sanitizer
}

// NewLinkedIn creates the LinkedIn extractor.
func NewLinkedIn() *LinkedIn {
	return &LinkedIn{san: NewSanitizer()}
}

func (e *LinkedIn) Board() string { return "linkedin" }

func (e *LinkedIn) Extract(raw []byte) ([]Item, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("linkedin: parse: %w", err)
	}

	cards := findAll(doc, func(n *html.Node) bool {
		return hasClass(n, "base-card") || hasClass(n, "job-search-card")
	})

	now := time.Now()
	var items []Item
	for _, card := range cards {
		title := nodeText(findFirst(card, func(n *html.Node) bool {
			return hasClass(n, "base-search-card__title")
		}))
		company := nodeText(findFirst(card, func(n *html.Node) bool {
			return hasClass(n, "base-search-card__subtitle")
		}))
		location := nodeText(findFirst(card, func(n *html.Node) bool {
			return hasClass(n, "job-search-card__location")
		}))
		if title == "" || company == "" {
			continue
		}

		var link string
		if a := findFirst(card, func(n *html.Node) bool {
			return hasClass(n, "base-card__full-link")
		}); a != nil {
			link = attr(a, "href")
		}

		items = append(items, Item{
			Title:       title,
			Company:     company,
			Location:    location,
			Link:        link,
			Source:      "linkedin",
			NaturalKey:  entityURNID(attr(card, "data-entity-urn")),
			DatePosted:  attrOfFirst(card, "datetime", "job-search-card__listdate"),
			CollectedAt: now,
			Status:      StatusPending,
		})
	}
	return items, nil
}

func (e *LinkedIn) ExtractDetail(raw []byte) (*Detail, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("linkedin: parse detail: %w", err)
	}

	salary, jobType := extractJSONLD(doc)
	if salary == "" {
		salary = normalizeSalary(nodeText(findFirst(doc, func(n *html.Node) bool {
			return hasClass(n, "compensation__salary")
		})))
	}

	descNode := findFirst(doc, func(n *html.Node) bool {
		return hasClass(n, "show-more-less-html__markup") || hasClass(n, "description__text")
	})
	desc := e.san.Markdown(renderHTML(descNode), "https://www.linkedin.com", nodeText(descNode))

	return &Detail{Salary: salary, JobType: jobType, Description: desc}, nil
}

// entityURNID pulls the numeric posting id out of urn:li:jobPosting:NNNN.
func entityURNID(urn string) string {
	if urn == "" {
		return ""
	}
	parts := strings.Split(urn, ":")
	return parts[len(parts)-1]
}

// attrOfFirst returns the named attribute of the first node with the class.
func attrOfFirst(root *html.Node, attrName, class string) string {
	n := findFirst(root, func(n *html.Node) bool { return hasClass(n, class) })
	if n == nil {
		return ""
	}
	return attr(n, attrName)
}
