package domain

// PageResult pairs a requested url with its body or the failure that prevented it.
// Content is empty whenever Err is set.
type PageResult struct {
	URL        string
	StatusCode int
	Content    string
	Err        error
}

// OK reports whether the page was fetched with a successful status.
func (r PageResult) OK() bool {
	return r.Err == nil
}

// WorkItem is one listing page waiting for item extraction.
type WorkItem struct {
	PageNumber int    `json:"page_number"`
	URL        string `json:"url"`
}
