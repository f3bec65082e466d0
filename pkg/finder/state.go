package finder

import "github.com/Sternrassler/image-finder/pkg/pexels"

// State is the search state read by the presentation layer.
type State struct {
	// Query is the current search term.
	Query string

	// Page is the 1-indexed page last requested for Query.
	Page int

	// Results holds every photo received for Query, in arrival order.
	Results []pexels.Photo

	// Busy is true while the fetch for (Query, Page) is outstanding.
	Busy bool

	// TotalResults is the match count reported by the API for Query.
	TotalResults int

	// HasMore is true when the last page received for Query advertised a
	// following page.
	HasMore bool

	// Generation identifies the fetch this state belongs to. It grows with
	// every SubmitQuery and LoadMore, so a subscriber can drop a snapshot
	// older than one it has already seen.
	Generation uint64
}

// CanLoadMore reports whether LoadMore would be accepted.
func (s State) CanLoadMore() bool {
	return !s.Busy && len(s.Results) > 0
}

// IsEmpty reports whether the empty-state message should be shown.
func (s State) IsEmpty() bool {
	return !s.Busy && len(s.Results) == 0
}

func (s State) clone() State {
	if s.Results != nil {
		s.Results = append([]pexels.Photo(nil), s.Results...)
	}
	return s
}
