package services

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/knowreal/knowreal-backend/internal/models"
)

// PageSize is the fixed number of dreams per listing page.
const PageSize = 6

// MaxPage caps the page number so the offset always fits in an int.
const MaxPage = math.MaxInt32 / PageSize

// ListParams are the sanitized listing filters taken from a URL query.
type ListParams struct {
	Query string      `json:"q,omitempty"`
	Mood  models.Mood `json:"mood,omitempty"`
	Lucid bool        `json:"lucid,omitempty"`
	Page  int         `json:"page"`
}

// ParseListParams never fails: invalid values fall back to their defaults.
func ParseListParams(values url.Values) ListParams {
	params := ListParams{
		Query: strings.TrimSpace(values.Get("q")),
		Lucid: values.Get("lucid") == "true",
		Page:  ParsePage(values.Get("page")),
	}
	if mood, ok := models.ParseMood(values.Get("mood")); ok {
		params.Mood = mood
	}
	return params
}

// ParsePage returns the 1-based page number in s, or 1 when s is absent,
// non-numeric, zero or negative. Larger values saturate at MaxPage.
func ParsePage(s string) int {
	// ParseInt saturates out-of-range values, which clampPage then caps.
	page, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 1
	}
	return clampPage(int(max(min(page, MaxPage), 0)))
}

func clampPage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > MaxPage:
		return MaxPage
	}
	return page
}

// Encode renders the filters as a canonical query string. Filters are kept
// so that page navigation does not drop them.
func (p ListParams) Encode() string {
	v := url.Values{}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	if p.Mood != "" {
		v.Set("mood", string(p.Mood))
	}
	if p.Lucid {
		v.Set("lucid", "true")
	}
	v.Set("page", strconv.Itoa(p.normalizedPage()))
	return v.Encode()
}

// WithPage returns a copy of p pointing at another page.
func (p ListParams) WithPage(page int) ListParams {
	p.Page = page
	return p
}

func (p ListParams) normalizedPage() int {
	return clampPage(p.Page)
}

// PageRange returns the inclusive zero-based offsets covered by page.
func PageRange(page int) (from, to int) {
	page = clampPage(page)
	from = (page - 1) * PageSize
	return from, from + PageSize - 1
}

// TotalPages is ceil(total / PageSize), never less than 1.
func TotalPages(total int64) int {
	if total <= 0 {
		return 1
	}
	return int((total + PageSize - 1) / PageSize)
}

// DreamQuery is a store-neutral, owner-scoped listing query. Every
// predicate is AND-combined; Search is an OR over title, content and notes.
type DreamQuery struct {
	OwnerID   string
	Search    string
	LucidOnly bool
	Mood      models.Mood
	Offset    int64
	Limit     int64
}

// ComposeDreamQuery turns listing filters into a query for identity. It
// refuses to build anything for an empty identity.
func ComposeDreamQuery(identity Identity, params ListParams) (DreamQuery, error) {
	if identity.IsZero() {
		return DreamQuery{}, ErrUnauthenticated
	}

	from, _ := PageRange(params.Page)
	q := DreamQuery{
		OwnerID:   identity.UserID,
		Search:    strings.TrimSpace(params.Query),
		LucidOnly: params.Lucid,
		Offset:    int64(from),
		Limit:     PageSize,
	}
	if params.Mood.Valid() {
		q.Mood = params.Mood
	}
	return q, nil
}

// DreamPage is one rendered page of the listing.
type DreamPage struct {
	Dreams      []models.Dream `json:"dreams"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
	TotalCount  int64          `json:"totalCount"`
	PrevPage    int            `json:"prevPage,omitempty"`
	NextPage    int            `json:"nextPage,omitempty"`
	Filters     ListParams     `json:"filters"`
	Query       string         `json:"query"`
}

func newDreamPage(params ListParams, dreams []models.Dream, total int64) *DreamPage {
	if dreams == nil {
		dreams = []models.Dream{}
	}
	page := &DreamPage{
		Dreams:      dreams,
		CurrentPage: params.normalizedPage(),
		TotalPages:  TotalPages(total),
		TotalCount:  total,
		Filters:     params,
		Query:       params.Encode(),
	}
	if page.CurrentPage > 1 {
		page.PrevPage = page.CurrentPage - 1
	}
	if page.CurrentPage < page.TotalPages {
		page.NextPage = page.CurrentPage + 1
	}
	return page
}
