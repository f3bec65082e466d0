package pexels

// Photo is a single search result as returned by the Pexels API.
// Fields are passed through untouched; only ID, Alt, Photographer,
// Src.Medium and Src.Original are relied upon by callers.
type Photo struct {
	ID              int64       `json:"id"`
	Width           int         `json:"width"`
	Height          int         `json:"height"`
	URL             string      `json:"url"`
	Photographer    string      `json:"photographer"`
	PhotographerURL string      `json:"photographer_url"`
	PhotographerID  int64       `json:"photographer_id"`
	AvgColor        string      `json:"avg_color"`
	Src             PhotoSource `json:"src"`
	Liked           bool        `json:"liked"`
	Alt             string      `json:"alt"`
}

// PhotoSource holds the image references in the sizes Pexels renders.
type PhotoSource struct {
	Original  string `json:"original"`
	Large2x   string `json:"large2x"`
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Small     string `json:"small"`
	Portrait  string `json:"portrait"`
	Landscape string `json:"landscape"`
	Tiny      string `json:"tiny"`
}

// SearchResult is the decoded body of GET /v1/search.
type SearchResult struct {
	TotalResults int     `json:"total_results"`
	Page         int     `json:"page"`
	PerPage      int     `json:"per_page"`
	Photos       []Photo `json:"photos"`
	NextPage     string  `json:"next_page,omitempty"`
	PrevPage     string  `json:"prev_page,omitempty"`
}

// HasNext reports whether the API advertised a following page.
func (r *SearchResult) HasNext() bool {
	return r != nil && r.NextPage != ""
}
