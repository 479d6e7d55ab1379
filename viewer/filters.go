package viewer

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/alDuncanson/dupescope/dataimport"
	"github.com/alDuncanson/dupescope/points"
)

// Filters are independent visibility toggles. A point that lacks the
// attribute a toggle inspects always passes that toggle.
type Filters struct {
	ShowPullRequests bool
	ShowIssues       bool
	ShowOpen         bool
	ShowClosed       bool

	// PathGlob, when set, hides points none of whose touched files match.
	PathGlob string
}

// DefaultFilters shows everything.
func DefaultFilters() Filters {
	return Filters{
		ShowPullRequests: true,
		ShowIssues:       true,
		ShowOpen:         true,
		ShowClosed:       true,
	}
}

// Visible reports whether p passes every filter.
func (f Filters) Visible(p points.Point) bool {
	switch p.Kind {
	case dataimport.KindPullRequest:
		if !f.ShowPullRequests {
			return false
		}
	case dataimport.KindIssue:
		if !f.ShowIssues {
			return false
		}
	}

	switch p.State {
	case dataimport.StateOpen:
		if !f.ShowOpen {
			return false
		}
	case dataimport.StateClosed:
		if !f.ShowClosed {
			return false
		}
	}

	if f.PathGlob == "" || len(p.Files) == 0 {
		return true
	}
	for _, file := range p.Files {
		if ok, _ := doublestar.Match(f.PathGlob, file); ok {
			return true
		}
	}
	return false
}

// ValidatePathGlob rejects patterns doublestar cannot evaluate.
func ValidatePathGlob(pattern string) error {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid path pattern %q", pattern)
	}
	return nil
}
