package board

import (
	"fmt"
	"net/url"
	"strings"
)

// SearchURL builds the search results URL for a query. Each board has its own
// URL shape; remote-only intent maps to whatever filter the board supports.
func SearchURL(q Query) (string, error) {
	keyword := strings.TrimSpace(q.Keyword)
	if keyword == "" {
		return "", fmt.Errorf("board: search needs a keyword")
	}
	location := strings.TrimSpace(q.Location)
	remote := strings.EqualFold(location, "remote")

	switch q.Board {
	case "indeed":
		v := url.Values{}
		v.Set("q", keyword)
		if location != "" {
			v.Set("l", location)
		}
		return "https://www.indeed.com/jobs?" + v.Encode(), nil

	case "linkedin":
		v := url.Values{}
		v.Set("keywords", keyword)
		if location != "" {
			v.Set("location", location)
		}
		if remote {
			// f_WT=2 is LinkedIn's remote workplace-type filter.
			v.Set("f_WT", "2")
		}
		return "https://www.linkedin.com/jobs/search/?" + v.Encode(), nil

	case "glassdoor":
		v := url.Values{}
		v.Set("sc.keyword", keyword)
		if remote {
			v.Set("remoteWorkType", "1")
		}
		return "https://www.glassdoor.com/Job/jobs.htm?" + v.Encode(), nil

	case "remotejobs":
		v := url.Values{}
		v.Set("search", keyword)
		return "https://www.remotejobs.io/remote-jobs?" + v.Encode(), nil
	}
	return "", fmt.Errorf("board: no search URL for %q", q.Board)
}
