// Package callsign recovers aircraft identifiers from free-form radio
// transcripts. Extraction is pure and deterministic, so it is safe to
// call from any number of goroutines without locking.
package callsign

import (
	"regexp"
	"strings"
)

// airlineCodes maps spoken airline names to ICAO telephony codes.
var airlineCodes = map[string]string{
	"UNITED":    "UAL",
	"AMERICAN":  "AAL",
	"DELTA":     "DAL",
	"SOUTHWEST": "SWA",
	"JETBLUE":   "JBU",
	"SPEEDBIRD": "BAW",
	"LUFTHANSA": "DLH",
	"WESTJET":   "WJA",
}

// Matchers are applied in order; the first hit wins. The airline-name
// phrase is tried before the generic code pattern so "UNITED 123"
// canonicalizes to UAL123 rather than matching as a bare word.
var (
	airlinePhrasePattern = regexp.MustCompile(`\b(UAL|UNITED|AAL|AMERICAN|DAL|DELTA|SWA|SOUTHWEST|JBU|JETBLUE|BAW|SPEEDBIRD|DLH|LUFTHANSA|WJA|WESTJET)\s*(\d{1,4})\b`)
	registrationPattern  = regexp.MustCompile(`\b([A-Z]\d{2,4}[A-Z]{0,2})\b`)
	genericCodePattern   = regexp.MustCompile(`\b([A-Z]{2,3})\s*(\d{1,4})\b`)
)

// Extract returns the canonical callsign found in the text, or the
// empty string when no pattern matches.
func Extract(text string) string {
	upper := strings.ToUpper(text)

	if m := airlinePhrasePattern.FindStringSubmatch(upper); m != nil {
		code := m[1]
		if icao, ok := airlineCodes[code]; ok {
			code = icao
		}
		return code + m[2]
	}

	if m := registrationPattern.FindStringSubmatch(upper); m != nil {
		return m[1]
	}

	if m := genericCodePattern.FindStringSubmatch(upper); m != nil {
		return m[1] + m[2]
	}

	return ""
}
