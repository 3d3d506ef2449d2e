package services

import (
	"math"
	"net/url"
	"testing"

	"github.com/knowreal/knowreal-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRange(t *testing.T) {
	for page := 1; page <= 50; page++ {
		from, to := PageRange(page)
		assert.Equal(t, (page-1)*6, from)
		assert.Equal(t, (page-1)*6+5, to)
	}
}

func TestParsePage_InvalidBehavesLikeFirstPage(t *testing.T) {
	for _, raw := range []string{"", "0", "-3", "abc", "1.5", " "} {
		assert.Equal(t, 1, ParsePage(raw), "page=%q", raw)
	}
	assert.Equal(t, 4, ParsePage("4"))
	assert.Equal(t, 4, ParsePage(" 4 "))
}

func TestParsePage_HugeValuesSaturate(t *testing.T) {
	for _, raw := range []string{"2000000000000000000", "99999999999999999999999", "9223372036854775807"} {
		assert.Equal(t, MaxPage, ParsePage(raw), "page=%q", raw)
	}
	assert.Equal(t, 1, ParsePage("-99999999999999999999999"))

	from, to := PageRange(math.MaxInt)
	assert.GreaterOrEqual(t, from, 0)
	assert.Greater(t, to, from)
}

func TestTotalPages(t *testing.T) {
	cases := map[int64]int{0: 1, 1: 1, 5: 1, 6: 1, 7: 2, 12: 2, 13: 3, 600: 100, 601: 101}
	for total, want := range cases {
		assert.Equal(t, want, TotalPages(total), "total=%d", total)
	}
	assert.Equal(t, 1, TotalPages(-1))
}

func TestParseListParams(t *testing.T) {
	params := ParseListParams(url.Values{
		"q":     {"  flying  "},
		"mood":  {"positive"},
		"lucid": {"true"},
		"page":  {"3"},
	})
	assert.Equal(t, ListParams{Query: "flying", Mood: models.MoodPositive, Lucid: true, Page: 3}, params)

	params = ParseListParams(url.Values{
		"q":     {"   "},
		"mood":  {"elated"},
		"lucid": {"yes"},
		"page":  {"-1"},
	})
	assert.Equal(t, ListParams{Page: 1}, params)
}

func TestListParams_Encode(t *testing.T) {
	p := ListParams{Query: "falling down", Mood: models.MoodNegative, Lucid: true, Page: 2}
	assert.Equal(t, "lucid=true&mood=negative&page=2&q=falling+down", p.Encode())
	assert.Equal(t, "page=1", ListParams{}.Encode())
	assert.Equal(t, "lucid=true&mood=negative&page=5&q=falling+down", p.WithPage(5).Encode())
}

func TestComposeDreamQuery(t *testing.T) {
	_, err := ComposeDreamQuery(Identity{}, ListParams{Page: 1})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = ComposeDreamQuery(Identity{UserID: "   "}, ListParams{Page: 1})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	q, err := ComposeDreamQuery(Identity{UserID: "owner-a"}, ListParams{Query: " sea ", Mood: models.MoodNeutral, Lucid: true, Page: 3})
	require.NoError(t, err)
	assert.Equal(t, DreamQuery{
		OwnerID:   "owner-a",
		Search:    "sea",
		LucidOnly: true,
		Mood:      models.MoodNeutral,
		Offset:    12,
		Limit:     6,
	}, q)

	q, err = ComposeDreamQuery(Identity{UserID: "owner-a"}, ListParams{Mood: "bogus", Page: 0})
	require.NoError(t, err)
	assert.Empty(t, q.Mood)
	assert.Equal(t, int64(0), q.Offset)
}

func TestNewDreamPage(t *testing.T) {
	page := newDreamPage(ListParams{Page: 2, Lucid: true}, nil, 13)
	assert.NotNil(t, page.Dreams)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 1, page.PrevPage)
	assert.Equal(t, 3, page.NextPage)
	assert.Equal(t, "lucid=true&page=2", page.Query)

	last := newDreamPage(ListParams{Page: 1}, nil, 0)
	assert.Equal(t, 1, last.TotalPages)
	assert.Zero(t, last.PrevPage)
	assert.Zero(t, last.NextPage)
}
