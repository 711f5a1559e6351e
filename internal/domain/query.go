package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// ExcludeParts enumerates the valid values of the exclude parameter.
var ExcludeParts = []string{"current", "minutely", "hourly", "daily", "alerts"}

// Units enumerates the valid values of the units parameter.
var Units = []string{"standard", "metric", "imperial"}

// WeatherQuery is the set of request parameters that affect the upstream
// response. Two queries with equal fingerprints are interchangeable.
type WeatherQuery struct {
	Lat     float64
	Lon     float64
	Exclude string
	Units   string
	Lang    string
}

// NormalizedExclude returns the exclude list with whitespace trimmed, empty
// parts dropped and the remainder sorted, so that parameter order does not
// change the fingerprint.
func (q WeatherQuery) NormalizedExclude() string {
	if q.Exclude == "" {
		return ""
	}
	parts := strings.Split(q.Exclude, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// Fingerprint derives the deterministic identity of the query used for
// caching and in-flight coalescing.
func (q WeatherQuery) Fingerprint() string {
	key := strings.Join([]string{
		strconv.FormatFloat(q.Lat, 'f', -1, 64),
		strconv.FormatFloat(q.Lon, 'f', -1, 64),
		q.NormalizedExclude(),
		q.Units,
		q.Lang,
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
