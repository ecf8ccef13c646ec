package board

import (
	"fmt"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RemoteJobs extracts from remote job aggregator listing rows. These pages
// are static server-rendered tables, so plain HTTP fetching is sufficient.
type RemoteJobs struct {
	san *Sanitizer
}

// NewRemoteJobs creates the RemoteJobs extractor.
func NewRemoteJobs() *RemoteJobs {
	return &RemoteJobs{san: NewSanitizer()}
}

func (e *RemoteJobs) Board() string { return "remotejobs" }

func (e *RemoteJobs) Extract(raw []byte) ([]Item, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("remotejobs: parse: %w", err)
	}

	rows := findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Tr && attr(n, "data-id") != ""
	})

	now := time.Now()
	var items []Item
	for _, row := range rows {
		title := nodeText(findFirst(row, func(n *html.Node) bool {
			return n.DataAtom == atom.H2
		}))
		company := nodeText(findFirst(row, func(n *html.Node) bool {
			return n.DataAtom == atom.H3 || hasClass(n, "companyLink")
		}))
		if title == "" || company == "" {
			continue
		}

		var link string
		if a := findFirst(row, func(n *html.Node) bool {
			return n.DataAtom == atom.A && attr(n, "href") != ""
		}); a != nil {
			link = attr(a, "href")
		}

		items = append(items, Item{
			Title:       title,
			Company:     company,
			Location:    nodeText(findFirst(row, func(n *html.Node) bool { return hasClass(n, "location") })),
			Link:        link,
			Source:      "remotejobs",
			NaturalKey:  attr(row, "data-id"),
			CollectedAt: now,
			Status:      StatusPending,
		})
	}
	return items, nil
}

func (e *RemoteJobs) ExtractDetail(raw []byte) (*Detail, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("remotejobs: parse detail: %w", err)
	}

	salary, jobType := extractJSONLD(doc)
	if salary == "" {
		salary = normalizeSalary(nodeText(findFirst(doc, func(n *html.Node) bool {
			return hasClass(n, "salary")
		})))
	}

	descNode := findFirst(doc, func(n *html.Node) bool {
		return hasClass(n, "description") || attr(n, "id") == "job-description"
	})
	desc := e.san.Markdown(renderHTML(descNode), "", nodeText(descNode))

	return &Detail{Salary: salary, JobType: jobType, Description: desc}, nil
}
