package horoscope

import (
	"html/template"
	"regexp"
	"strings"
)

var emotionalLabelRegex = regexp.MustCompile(labelEmotional + `[\s🤕😊😢😍🙂]*`)

type bar struct {
	Label string
	Value int
	Width int
	// Color, Track and Fill are trusted constants below.
	Color template.CSS
	Track template.CSS
	Fill  template.CSS
}

type page struct {
	Main      string
	Emotional string
	Bars      []bar
}

var pageTemplate = template.Must(template.New("record").Parse(
	`<div dir="rtl" style="max-width: 100%; margin: 20px auto; font-family: 'Noto Sans Arabic', 'Segoe UI', Tahoma, sans-serif; background: white; border-radius: 10px; box-shadow: 0 2px 20px rgba(0,0,0,0.08); overflow: hidden;">
    <div style="padding: 25px 20px;">
        <p class="horoscope-main" style="font-size: 17px; line-height: 1.8; margin-bottom: 25px; color: #333; text-align: right;">{{.Main}}</p>
        <div class="horoscope-emotional" style="background-color: #f6f4ff; border-right: 5px solid #6b5ce7; border-radius: 8px; padding: 18px; margin: 25px 0; position: relative;">
            <h3 style="color: #6b5ce7; margin: 0 0 10px 0; font-size: 18px; display: inline-block;">عاطفيا</h3>
            <span style="font-size: 24px; margin-right: 5px; vertical-align: middle;">🤕</span>
            <p style="margin: 10px 0 0 0; color: #444; line-height: 1.7; font-size: 16px;">{{.Emotional}}</p>
        </div>
        <div class="horoscope-scores" style="margin-top: 30px; background-color: #fafafa; border-radius: 8px; padding: 20px;">
            <h3 style="color: #6b5ce7; text-align: center; margin-top: 0; margin-bottom: 20px; font-size: 20px; font-weight: 700;">النسبة المئوية</h3>
{{- range .Bars}}
            <div class="horoscope-bar" data-label="{{.Label}}" style="margin-bottom: 18px;">
                <div style="display: flex; justify-content: space-between; margin-bottom: 8px;">
                    <span style="font-weight: 600; color: #444; font-size: 16px;">{{.Label}}</span>
                    <span class="horoscope-value" style="font-weight: 700; color: {{.Color}}; font-size: 16px;">{{.Value}}%</span>
                </div>
                <div style="height: 10px; background-color: {{.Track}}; border-radius: 5px; overflow: hidden;">
                    <div class="horoscope-fill" data-width="{{.Width}}" style="width: {{.Width}}%; height: 100%; background: {{.Fill}}; border-radius: 5px;"></div>
                </div>
            </div>
{{- end}}
        </div>
    </div>
</div>`,
))

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func newBar(label string, value int, color, track, fill template.CSS) bar {
	return bar{
		Label: label,
		Value: value,
		Width: clampPercent(value),
		Color: color,
		Track: track,
		Fill:  fill,
	}
}

// splitEmotional moves the first emotional subsection (its label through the
// next blank line or the end) out of body.
func splitEmotional(body string) (main, emotional string) {
	loc := emotionalLabelRegex.FindStringIndex(body)
	if loc == nil {
		return strings.TrimSpace(body), ""
	}
	rest := body[loc[1]:]
	end := strings.Index(rest, "\n\n")
	if end < 0 {
		end = len(rest)
	}
	emotional = strings.TrimSpace(rest[:end])
	main = strings.TrimSpace(body[:loc[0]] + rest[end:])
	return main, emotional
}

// Render produces the post markup for a record. Bar widths are clamped to
// [0, 100] while the printed values are kept as is.
func Render(r Record) string {
	main, emotional := splitEmotional(r.Body)

	bars := []bar{
		newBar(labelProfessional, r.Professional, "#6b5ce7", "#e9e5ff", "linear-gradient(to right, #6b5ce7, #a599f7)"),
		newBar(labelFinancial, r.Financial, "#4a9fff", "#e5f0ff", "linear-gradient(to right, #4a9fff, #73b5ff)"),
		newBar(labelEmotional, r.Emotional, "#ff6b9d", "#ffe5ef", "linear-gradient(to right, #ff6b9d, #ff97bb)"),
	}
	if r.Health != nil {
		bars = append(bars, newBar(labelHealth, *r.Health, "#4cd964", "#e5ffe9", "linear-gradient(to right, #4cd964, #83e895)"))
	}

	var b strings.Builder
	err := pageTemplate.Execute(&b, page{
		Main:      main,
		Emotional: emotional,
		Bars:      bars,
	})
	if err != nil {
		// the template is static and every field is a string or int
		panic(err)
	}
	return b.String()
}
