package relay

import (
	"horoscope-relay/internal/horoscope"
)

// LatestBySign keeps, for every sign, the record with the newest date. On a
// tie the record seen first wins. The result is in sign order.
func LatestBySign(records []horoscope.Record) []horoscope.Record {
	latest := map[horoscope.Sign]horoscope.Record{}
	for _, r := range records {
		current, ok := latest[r.Sign]
		if !ok || r.Newer(current) {
			latest[r.Sign] = r
		}
	}

	out := make([]horoscope.Record, 0, len(latest))
	for _, sign := range horoscope.Signs() {
		if r, ok := latest[sign]; ok {
			out = append(out, r)
		}
	}
	return out
}
