package horoscope

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

type renderedBar struct {
	label string
	value string
	width string
}

func parseRendered(t *testing.T, html string) (*goquery.Document, []renderedBar) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	var bars []renderedBar
	doc.Find(".horoscope-bar").Each(func(_ int, s *goquery.Selection) {
		bars = append(bars, renderedBar{
			label: s.AttrOr("data-label", ""),
			value: strings.TrimSpace(s.Find(".horoscope-value").Text()),
			width: s.Find(".horoscope-fill").AttrOr("data-width", ""),
		})
	})
	return doc, bars
}

func TestRenderBars(t *testing.T) {
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		scores   Scores
		expected []renderedBar
	}{
		{
			name:   "without health",
			scores: Scores{Professional: 45, Financial: 60, Emotional: 30},
			expected: []renderedBar{
				{label: "مهنيا", value: "45%", width: "45"},
				{label: "ماليا", value: "60%", width: "60"},
				{label: "عاطفيا", value: "30%", width: "30"},
			},
		},
		{
			name:   "zero health is rendered",
			scores: Scores{Professional: 1, Financial: 2, Emotional: 3, Health: intPtr(0)},
			expected: []renderedBar{
				{label: "مهنيا", value: "1%", width: "1"},
				{label: "ماليا", value: "2%", width: "2"},
				{label: "عاطفيا", value: "3%", width: "3"},
				{label: "صحيا", value: "0%", width: "0"},
			},
		},
		{
			name:   "out of range values are clamped",
			scores: Scores{Professional: 150, Financial: -5, Emotional: 100, Health: intPtr(101)},
			expected: []renderedBar{
				{label: "مهنيا", value: "150%", width: "100"},
				{label: "ماليا", value: "-5%", width: "0"},
				{label: "عاطفيا", value: "100%", width: "100"},
				{label: "صحيا", value: "101%", width: "100"},
			},
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			r := NewRecord(Aries, date, "نص", test.scores, 1)
			_, bars := parseRendered(t, r.Rendered)
			require.Equal(t, test.expected, bars)
			require.Contains(t, r.Rendered, "width: "+test.expected[0].width+"%")
		})
	}
}

func TestRenderEmotionalSection(t *testing.T) {
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	r := NewRecord(
		Leo,
		date,
		"يوم هادئ في العمل\nعاطفيا 😍 لقاء سعيد ينتظرك",
		Scores{Professional: 10, Financial: 20, Emotional: 30},
		1,
	)
	doc, _ := parseRendered(t, r.Rendered)
	require.Equal(t, "يوم هادئ في العمل", doc.Find(".horoscope-main").Text())
	require.Equal(t, "لقاء سعيد ينتظرك", doc.Find(".horoscope-emotional p").Text())

	r = NewRecord(Leo, date, "لا شيء عن المشاعر", Scores{}, 1)
	doc, _ = parseRendered(t, r.Rendered)
	require.Equal(t, "لا شيء عن المشاعر", doc.Find(".horoscope-main").Text())
	require.Equal(t, "", doc.Find(".horoscope-emotional p").Text())
	require.Equal(t, "rtl", doc.Find("div").First().AttrOr("dir", ""))
}

func TestRenderEscapes(t *testing.T) {
	r := NewRecord(Leo, time.Time{}, `<script>alert("x")</script>`, Scores{}, 1)
	require.NotContains(t, r.Rendered, "<script>")

	doc, _ := parseRendered(t, r.Rendered)
	require.Equal(t, `<script>alert("x")</script>`, doc.Find(".horoscope-main").Text())
}

func TestRefresh(t *testing.T) {
	r := NewRecord(Leo, time.Time{}, "نص", Scores{Professional: 10}, 1)
	before := r.Rendered
	r.Professional = 90
	r.Refresh()
	require.NotEqual(t, before, r.Rendered)

	_, bars := parseRendered(t, r.Rendered)
	require.Equal(t, "90", bars[0].width)
}

func TestFormatArabicDate(t *testing.T) {
	require.Equal(t, "5 مارس 2024", FormatArabicDate(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "31 ديسمبر 2023", FormatArabicDate(time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC)))
}

func TestSigns(t *testing.T) {
	signs := Signs()
	require.Len(t, signs, 12)
	require.Equal(t, Aries, signs[0])
	require.Equal(t, Pisces, signs[11])
	require.Equal(t, "gemeni.png", Gemini.Image())
	require.Equal(t, "aquarius.webp", Aquarius.Image())

	for _, s := range signs {
		parsed, err := ParseSign(s.Canonical())
		require.NoError(t, err)
		require.Equal(t, s, parsed)

		parsed, err = ParseSign(s.Local())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}

	_, err := ParseSign("Ophiuchus")
	require.Error(t, err)
	require.False(t, Sign(0).Valid())
	require.Equal(t, "Sign(13)", Sign(13).String())
}
