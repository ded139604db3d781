package horoscope

import (
	"fmt"
	"strings"
)

// Sign is one of the twelve zodiac signs. The zero value is invalid.
type Sign int

const (
	Aries Sign = iota + 1
	Taurus
	Gemini
	Cancer
	Leo
	Virgo
	Libra
	Scorpio
	Sagittarius
	Capricorn
	Aquarius
	Pisces
)

type signInfo struct {
	local     string
	canonical string
	glyph     string
	image     string
}

// signTable is indexed by Sign, index 0 is the invalid sign.
var signTable = [...]signInfo{
	{},
	{local: "الحمل", canonical: "Aries", glyph: "♈", image: "aries.png"},
	{local: "الثور", canonical: "Taurus", glyph: "♉", image: "taurus.png"},
	{local: "الجوزاء", canonical: "Gemini", glyph: "♊", image: "gemeni.png"},
	{local: "السرطان", canonical: "Cancer", glyph: "♋", image: "cancer.png"},
	{local: "الأسد", canonical: "Leo", glyph: "♌", image: "leo.png"},
	{local: "العذراء", canonical: "Virgo", glyph: "♍", image: "virgo.png"},
	{local: "الميزان", canonical: "Libra", glyph: "♎", image: "libra.png"},
	{local: "العقرب", canonical: "Scorpio", glyph: "♏", image: "scorpio.png"},
	{local: "القوس", canonical: "Sagittarius", glyph: "♐", image: "sagittarius.png"},
	{local: "الجدي", canonical: "Capricorn", glyph: "♑", image: "capricorn.png"},
	{local: "الدلو", canonical: "Aquarius", glyph: "♒", image: "aquarius.webp"},
	{local: "الحوت", canonical: "Pisces", glyph: "♓", image: "pisces.png"},
}

// Signs returns every sign in enumeration order.
func Signs() []Sign {
	out := make([]Sign, 0, len(signTable)-1)
	for s := Aries; s <= Pisces; s++ {
		out = append(out, s)
	}
	return out
}

func (s Sign) Valid() bool {
	return s >= Aries && s <= Pisces
}

func (s Sign) info() signInfo {
	if !s.Valid() {
		return signInfo{}
	}
	return signTable[s]
}

// Local is the Arabic name used as the hashtag in channel posts.
func (s Sign) Local() string {
	return s.info().local
}

// Canonical is the English name.
func (s Sign) Canonical() string {
	return s.info().canonical
}

func (s Sign) Glyph() string {
	return s.info().glyph
}

// Image is the file name of the sign's featured image asset.
func (s Sign) Image() string {
	return s.info().image
}

func (s Sign) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Sign(%d)", int(s))
	}
	return s.Canonical()
}

// ParseSign accepts either the canonical (case insensitive) or the local
// name of a sign.
func ParseSign(name string) (Sign, error) {
	name = strings.TrimSpace(name)
	for s := Aries; s <= Pisces; s++ {
		info := signTable[s]
		if strings.EqualFold(info.canonical, name) || info.local == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown sign %q", name)
}
