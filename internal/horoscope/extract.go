package horoscope

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"horoscope-relay/internal/components/assert"
	"horoscope-relay/internal/components/chrono"
	"horoscope-relay/internal/components/telemetry"
)

const (
	report_extract_find_segment      = "extract.find-segment"
	report_extract_find_percentages  = "extract.find-percentages"
	report_extract_parse_percentages = "extract.parse-percentages"
	report_extract_empty_body        = "extract.empty-body"
	report_extract_score_range       = "extract.score-range"
)

const digit = `[0-9٠-٩۰-۹]`

// labels of the four score lines, in the order channels print them.
const (
	labelProfessional = "مهنيا"
	labelFinancial    = "ماليا"
	labelEmotional    = "عاطفيا"
	labelHealth       = "صحيا"
)

// percentagesRegex has two alternatives with four groups each:
//
//	●مهنيا 💼 45  ●ماليا 60  ●عاطفيا 30  [●صحيا 70]
//	مهنيا%45 ماليا%60 عاطفيا%30 [صحيا%70]
var percentagesRegex = regexp.MustCompile(
	`(?s)` +
		`[●◾]` + labelProfessional + `.*?(` + digit + `+)` +
		`.*?[●◾]` + labelFinancial + `.*?(` + digit + `+)` +
		`.*?[●◾]` + labelEmotional + `.*?(` + digit + `+)` +
		`(?:.*?[●◾]` + labelHealth + `.*?(` + digit + `+))?` +
		`|` +
		labelProfessional + `%(` + digit + `+)` +
		`.*?` + labelFinancial + `%(` + digit + `+)` +
		`.*?` + labelEmotional + `%(` + digit + `+)` +
		`(?:.*?` + labelHealth + `%(` + digit + `+))?`,
)

// residualScoreRegex matches a single leftover score fragment of either
// layout once the body has been normalized.
var residualScoreRegex = regexp.MustCompile(
	`[●◾][ \t]*(?:` + labelProfessional + `|` + labelFinancial + `|` + labelEmotional + `|` + labelHealth + `)` +
		`[^\p{L}\n]{0,12}?` + digit + `+[ \t]*%?` +
		`|` +
		`(?:` + labelProfessional + `|` + labelFinancial + `|` + labelEmotional + `|` + labelHealth + `)` +
		`[ \t]*%[ \t]*` + digit + `+`,
)

var percentHeadingRegex = regexp.MustCompile(`(?m)^[■▪◼]?[ \t]*النسبة المئوية`)

var segmentRegexes = func() map[Sign]*regexp.Regexp {
	out := make(map[Sign]*regexp.Regexp, len(signTable))
	for _, s := range Signs() {
		out[s] = regexp.MustCompile(
			`(?s)#` + regexp.QuoteMeta(s.Local()) +
				`[\s\p{Zs}\x{200E}\x{200F}]*` + regexp.QuoteMeta(s.Glyph()) +
				`\x{FE0F}?(.*?)(?:#|$)`,
		)
	}
	return out
}()

// Extractor turns a channel post into one record per sign found in it.
type Extractor struct {
	tel   telemetry.API
	clock chrono.API
}

func NewExtractor(tel telemetry.API, clock chrono.API) Extractor {
	assert.NotNil(tel)
	assert.NotNil(clock)
	return Extractor{
		tel:   telemetry.NewScopedAPI("horoscope", tel),
		clock: clock,
	}
}

// Extract returns the records found in text in sign order. A zero timestamp
// means the message time is unknown and today's date is used instead.
// Every sign that is skipped is reported as a warning.
func (e Extractor) Extract(text string, messageID int, timestamp time.Time) []Record {
	loc := e.clock.Location()
	var date time.Time
	if timestamp.IsZero() {
		date = chrono.StartOfDay(e.clock.Now(), loc)
	} else {
		date = chrono.StartOfDay(timestamp, loc)
	}

	var records []Record
	for _, sign := range Signs() {
		match := segmentRegexes[sign].FindStringSubmatch(text)
		if match == nil {
			e.tel.ReportWarning(report_extract_find_segment, "sign", sign.Canonical(), "message", messageID)
			continue
		}
		segment := strings.TrimSpace(match[1])

		scores, ok := e.scores(sign, segment, messageID)
		if !ok {
			continue
		}

		body := cleanBody(segment)
		if body == "" {
			e.tel.ReportWarning(report_extract_empty_body, "sign", sign.Canonical(), "message", messageID)
			continue
		}

		e.tel.ReportDebug(
			"extracted",
			"sign", sign.Canonical(),
			"date", date.Format(time.DateOnly),
			"scores", fmt.Sprintf("%d/%d/%d", scores.Professional, scores.Financial, scores.Emotional),
		)
		records = append(records, NewRecord(sign, date, body, scores, messageID))
	}
	return records
}

func (e Extractor) scores(sign Sign, segment string, messageID int) (Scores, bool) {
	groups := percentagesRegex.FindStringSubmatch(segment)
	if groups == nil {
		preview := []rune(segment)
		if len(preview) > 100 {
			preview = preview[:100]
		}
		e.tel.ReportWarning(
			report_extract_find_percentages,
			"sign", sign.Canonical(),
			"message", messageID,
			"segment", string(preview),
		)
		return Scores{}, false
	}

	// groups[1:5] belong to the bulleted layout, groups[5:9] to the compact one
	values := groups[5:9]
	if groups[1] != "" {
		values = groups[1:5]
	}

	parsed := make([]int, 0, 4)
	for _, v := range values {
		if v == "" {
			break
		}
		n, err := strconv.Atoi(asciiDigits(v))
		if err != nil {
			e.tel.ReportWarning(
				report_extract_parse_percentages,
				fmt.Errorf("%s: %w", sign.Canonical(), err),
				"message", messageID,
			)
			return Scores{}, false
		}
		if n > 100 {
			e.tel.ReportWarning(
				report_extract_score_range,
				"sign", sign.Canonical(), "message", messageID, "value", n,
			)
		}
		parsed = append(parsed, n)
	}

	scores := Scores{
		Professional: parsed[0],
		Financial:    parsed[1],
		Emotional:    parsed[2],
	}
	if len(parsed) == 4 {
		health := parsed[3]
		scores.Health = &health
	}
	return scores, true
}

// cleanBody normalizes a segment and removes the score section and any
// remaining score fragments.
func cleanBody(segment string) string {
	body := cutPercentSections(Normalize(segment))
	body = residualScoreRegex.ReplaceAllString(body, "")

	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// cutPercentSections removes every "النسبة المئوية" heading through the next
// blank line, or through the end of the text if there is none.
func cutPercentSections(text string) string {
	for {
		loc := percentHeadingRegex.FindStringIndex(text)
		if loc == nil {
			return text
		}
		end := strings.Index(text[loc[0]:], "\n\n")
		if end < 0 {
			text = text[:loc[0]]
			continue
		}
		text = text[:loc[0]] + text[loc[0]+end:]
	}
}
