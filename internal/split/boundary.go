package split

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/book-expert/pdf-tools/internal/document"
)

// PageRange is an inclusive, 1-based run of pages.
type PageRange struct {
	First int
	Last  int
}

// Len returns the number of pages in the range.
func (r PageRange) Len() int { return r.Last - r.First + 1 }

// Pages lists the 1-based page numbers of the range in order.
func (r PageRange) Pages() []int {
	pages := make([]int, 0, r.Len())
	for page := r.First; page <= r.Last; page++ {
		pages = append(pages, page)
	}

	return pages
}

func (r PageRange) String() string {
	return fmt.Sprintf("[%d-%d]", r.First, r.Last)
}

type boundaryMode int

const (
	modeEvery boundaryMode = iota
	modeAt
)

// Boundary describes where a document is cut: every N pages, or before each of
// an explicit set of pages. The zero value is an invalid stride.
type Boundary struct {
	at    []int
	every int
	mode  boundaryMode
}

// Every cuts after every n pages.
func Every(n int) Boundary {
	return Boundary{mode: modeEvery, every: n}
}

// At starts a new part at each of the given 1-based pages. Order and duplicates
// do not matter.
func At(pages ...int) Boundary {
	return Boundary{mode: modeAt, at: slices.Clone(pages)}
}

func (b Boundary) String() string {
	if b.mode == modeAt {
		parts := make([]string, len(b.at))
		for index, page := range b.at {
			parts[index] = strconv.Itoa(page)
		}

		return "at " + strings.Join(parts, ",")
	}

	return fmt.Sprintf("every %d", b.every)
}

// Ranges resolves the boundary against a document of pageCount pages. The
// ranges are contiguous, do not overlap and cover [1, pageCount].
func (b Boundary) Ranges(pageCount int) ([]PageRange, error) {
	if pageCount < 1 {
		return nil, document.InvalidInputf("document has %d pages", pageCount)
	}

	if b.mode == modeAt {
		return atRanges(b.at, pageCount)
	}

	return strideRanges(b.every, pageCount)
}

func strideRanges(every, pageCount int) ([]PageRange, error) {
	if every < 1 {
		return nil, document.InvalidParameterf("split stride must be at least 1, got %d", every)
	}

	ranges := make([]PageRange, 0, (pageCount+every-1)/every)
	for first := 1; first <= pageCount; first += every {
		ranges = append(ranges, PageRange{First: first, Last: min(first+every-1, pageCount)})
	}

	return ranges, nil
}

func atRanges(at []int, pageCount int) ([]PageRange, error) {
	starts := slices.Clone(at)
	slices.Sort(starts)
	starts = slices.Compact(starts)

	for _, page := range starts {
		if page < 2 || page > pageCount {
			return nil, document.InvalidParameterf(
				"split page %d is outside [2, %d]",
				page,
				pageCount,
			)
		}
	}

	ranges := make([]PageRange, 0, len(starts)+1)
	first := 1

	for _, start := range starts {
		ranges = append(ranges, PageRange{First: first, Last: start - 1})
		first = start
	}

	return append(ranges, PageRange{First: first, Last: pageCount}), nil
}

var whitespace = regexp.MustCompile(`\s`)

// ParsePageList parses a comma-separated list of page numbers such as "5, 10".
// Blank entries are skipped; anything that is not an integer is
// ErrInvalidParameter. Range checks are left to Boundary.Ranges.
func ParsePageList(list string) ([]int, error) {
	list = whitespace.ReplaceAllString(list, "")

	var pages []int

	for _, part := range strings.Split(list, ",") {
		if part == "" {
			continue
		}

		page, convErr := strconv.Atoi(part)
		if convErr != nil {
			return nil, document.InvalidParameterf("invalid page number %q", part)
		}

		pages = append(pages, page)
	}

	return pages, nil
}
