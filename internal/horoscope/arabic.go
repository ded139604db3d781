package horoscope

import (
	"fmt"
	"strings"
	"time"
)

var arabicMonths = [...]string{
	"يناير",
	"فبراير",
	"مارس",
	"أبريل",
	"مايو",
	"يونيو",
	"يوليو",
	"أغسطس",
	"سبتمبر",
	"أكتوبر",
	"نوفمبر",
	"ديسمبر",
}

// FormatArabicDate formats a date as "<day> <month> <year>" with the
// Arabic month name, e.g. "5 مارس 2024".
func FormatArabicDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), arabicMonths[t.Month()-1], t.Year())
}

var digitReplacer = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
)

// asciiDigits converts Arabic-Indic and Extended Arabic-Indic digits to
// their ASCII equivalents, leaving everything else untouched.
func asciiDigits(s string) string {
	return digitReplacer.Replace(s)
}
