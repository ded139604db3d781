package horoscope

import (
	"strings"
	"testing"
	"time"

	"horoscope-relay/internal/components/chrono"
	"horoscope-relay/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func baghdad(t *testing.T) *time.Location {
	loc, err := time.LoadLocation(chrono.Zone)
	require.NoError(t, err)
	return loc
}

func newTestExtractor(t *testing.T) (Extractor, *telemetry.Recorder, *chrono.Fake) {
	tel := &telemetry.Recorder{}
	clock := chrono.NewFake(time.Date(2024, time.March, 5, 10, 0, 0, 0, baghdad(t)))
	return NewExtractor(tel, clock), tel, clock
}

func intPtr(v int) *int {
	return &v
}

func TestExtractEndToEnd(t *testing.T) {
	extractor, tel, _ := newTestExtractor(t)

	ts := time.Date(2024, time.March, 4, 22, 30, 0, 0, time.UTC)
	records := extractor.Extract(
		"#الحمل♈ body ●مهنيا 45 ●ماليا 60 ●عاطفيا 30 #الثور♉ ...",
		77,
		ts,
	)

	require.Len(t, records, 1)
	aries := records[0]
	require.Equal(t, Aries, aries.Sign)
	require.Equal(t, 45, aries.Professional)
	require.Equal(t, 60, aries.Financial)
	require.Equal(t, 30, aries.Emotional)
	require.Nil(t, aries.Health)
	require.Equal(t, "body", aries.Body)
	require.Equal(t, 77, aries.MessageID)
	// 22:30 UTC is already the next day in Baghdad
	require.Equal(t, "2024-03-05", aries.DateString())
	require.NotEmpty(t, aries.Rendered)

	require.Len(t, tel.Warnings(report_extract_find_percentages), 1)
	require.Len(t, tel.Warnings(report_extract_find_segment), 10)
}

func TestExtractLayouts(t *testing.T) {
	bulleted := strings.Join([]string{
		"#الجوزاء♊",
		"يوم مليء بالفرص",
		"■النسبة المئوية",
		"●مهنيا 💼 45%",
		"●ماليا 💰 60%",
		"◾عاطفيا ❤️ 30%",
		"●صحيا 70%",
	}, "\n")
	compact := strings.Join([]string{
		"#الجوزاء ♊",
		"يوم مليء بالفرص",
		"مهنيا%45 ماليا%60 عاطفيا%30 صحيا%70",
	}, "\n")
	indic := strings.Join([]string{
		"#الجوزاء♊",
		"يوم مليء بالفرص",
		"●مهنيا ٤٥ ●ماليا ۶۰ ●عاطفيا ٣٠ ●صحيا ٧٠",
	}, "\n")

	for _, text := range []string{bulleted, compact, indic} {
		extractor, _, _ := newTestExtractor(t)
		records := extractor.Extract(text, 1, time.Time{})
		require.Len(t, records, 1, text)

		r := records[0]
		require.Equal(t, Gemini, r.Sign)
		require.Equal(t, Scores{Professional: 45, Financial: 60, Emotional: 30, Health: intPtr(70)}, r.Scores(), text)
		require.Equal(t, "يوم مليء بالفرص", r.Body, text)
		require.Equal(t, "2024-03-05", r.DateString())
	}
}

func TestExtractSubsets(t *testing.T) {
	segment := func(sign Sign, scores string) string {
		return "#" + sign.Local() + sign.Glyph() + "\nنص " + sign.Canonical() + "\n" + scores + "\n"
	}
	wellFormed := "●مهنيا 10 ●ماليا 20 ●عاطفيا 30"

	var all strings.Builder
	all.WriteString("توقعات اليوم\n:- @source\n")
	for _, sign := range Signs() {
		all.WriteString(segment(sign, wellFormed))
	}

	extractor, tel, _ := newTestExtractor(t)
	records := extractor.Extract(all.String(), 5, time.Time{})
	require.Len(t, records, 12)
	for i, r := range records {
		require.Equal(t, Signs()[i], r.Sign)
		require.Equal(t, "نص "+r.Sign.Canonical(), r.Body)
	}
	require.Empty(t, tel.Warnings(""))

	var partial strings.Builder
	partial.WriteString(segment(Leo, wellFormed))
	partial.WriteString(segment(Virgo, "لا توجد نسب"))
	partial.WriteString(segment(Pisces, "●مهنيا 1 ●ماليا 2 ●عاطفيا 3 ●صحيا 0"))

	extractor, tel, _ = newTestExtractor(t)
	records = extractor.Extract(partial.String(), 6, time.Time{})
	require.Len(t, records, 2)
	require.Equal(t, Leo, records[0].Sign)
	require.Equal(t, Pisces, records[1].Sign)
	require.Equal(t, intPtr(0), records[1].Health)

	warnings := tel.Warnings(report_extract_find_percentages)
	require.Len(t, warnings, 1)
	require.Equal(t, []any{"sign", "Virgo"}, warnings[0].Params[:2])
}

func TestExtractMalformed(t *testing.T) {
	inputs := []string{
		"",
		"#",
		"#الحمل",
		"#الحمل♈",
		"#الحمل♈ ●مهنيا",
		"#الحمل♈ ●مهنيا 1 ●ماليا",
		"#الحمل♈ ●مهنيا 99999999999999999999999 ●ماليا 1 ●عاطفيا 1",
		"\x00\xff#\x01",
	}
	for _, in := range inputs {
		extractor, _, _ := newTestExtractor(t)
		require.NotPanics(t, func() {
			require.Empty(t, extractor.Extract(in, 0, time.Time{}), "input %q", in)
		})
	}
}

func TestExtractEmptyBody(t *testing.T) {
	extractor, tel, _ := newTestExtractor(t)
	records := extractor.Extract("#الحمل♈\n●مهنيا 45 ●ماليا 60 ●عاطفيا 30\n@channel", 3, time.Time{})
	require.Empty(t, records)
	require.Len(t, tel.Warnings(report_extract_empty_body), 1)
}

func TestExtractScoreRange(t *testing.T) {
	extractor, tel, _ := newTestExtractor(t)
	records := extractor.Extract("#الدلو♒ نص ●مهنيا 150 ●ماليا 60 ●عاطفيا 30", 3, time.Time{})
	require.Len(t, records, 1)
	require.Equal(t, 150, records[0].Professional)
	require.Len(t, tel.Warnings(report_extract_score_range), 1)
}

func TestCutPercentSections(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{in: "a\n■النسبة المئوية\n●مهنيا 1", expected: "a\n"},
		{in: "a\nالنسبة المئوية\nx\n\nb", expected: "a\n\n\nb"},
		{in: "a النسبة المئوية b", expected: "a النسبة المئوية b"},
		{in: "none", expected: "none"},
	}
	for _, test := range cases {
		require.Equal(t, test.expected, cutPercentSections(test.in), "input %q", test.in)
	}
}
