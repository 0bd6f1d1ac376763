package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// extractionDateLayout is the dd.mm.yyyy format used by the feed.
const extractionDateLayout = "02.01.2006"

// RawSample is one measurement record as delivered by the health-monitoring
// API: one extraction at one station, with the laboratory results nested
// inside. Results may be absent.
type RawSample struct {
	Station        string       `json:"station"`
	ExtractionDate string       `json:"extraction_date"`
	Results        []TestResult `json:"results,omitempty"`
}

// TestResult is one assay run within a sample. Name is optional and must be
// checked before use; Parameters may be absent. The upstream schema names the
// parameter list in the singular.
type TestResult struct {
	Name       *string         `json:"name,omitempty"`
	Parameters []TestParameter `json:"parameter,omitempty"`
}

// TestParameter is one measured value within a test result. Name is optional;
// only parameters whose name starts with the copy-number prefix carry
// quantitative replicates.
type TestParameter struct {
	Name   *string    `json:"name,omitempty"`
	Result FlexNumber `json:"result,omitempty"`
}

// FlexNumber holds a value the feed encodes either as a JSON number or as a
// string with a comma decimal separator ("173,5"). It preserves the raw
// encoding; Float64 is the single normalization step before any arithmetic.
type FlexNumber struct {
	raw json.RawMessage
}

// Number wraps a float64 in a FlexNumber, for fixtures and tests.
func Number(v float64) FlexNumber {
	data, _ := json.Marshal(v)
	return FlexNumber{raw: data}
}

// NumberString wraps a string-encoded value in a FlexNumber.
func NumberString(s string) FlexNumber {
	data, _ := json.Marshal(s)
	return FlexNumber{raw: data}
}

// UnmarshalJSON keeps the raw encoding without judging it. Malformed values
// surface as an absent Float64, never as a decode error, so one bad
// parameter cannot reject a whole dataset.
func (f *FlexNumber) UnmarshalJSON(data []byte) error {
	f.raw = append(f.raw[:0:0], data...)
	return nil
}

// MarshalJSON re-emits the original encoding.
func (f FlexNumber) MarshalJSON() ([]byte, error) {
	if len(f.raw) == 0 {
		return []byte("null"), nil
	}
	return f.raw, nil
}

// Float64 normalizes and parses the value. The second return is false when
// the value is absent, non-numeric, or fails to parse after comma
// normalization.
func (f FlexNumber) Float64() (float64, bool) {
	if len(f.raw) == 0 || string(f.raw) == "null" {
		return 0, false
	}
	if f.raw[0] == '"' {
		var s string
		if err := json.Unmarshal(f.raw, &s); err != nil {
			return 0, false
		}
		return parseDecimal(s)
	}
	var v float64
	if err := json.Unmarshal(f.raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// parseDecimal parses a string-encoded measurement, accepting a comma as the
// decimal separator.
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DecodeDataset parses a raw dataset document. The top-level shape must be a
// JSON array; anything else is a structural error the caller must handle
// before aggregation runs.
func DecodeDataset(data []byte) ([]RawSample, error) {
	var samples []RawSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return samples, nil
}

// ParseExtractionDate parses a feed-formatted date in UTC.
func ParseExtractionDate(s string) (time.Time, error) {
	return time.ParseInLocation(extractionDateLayout, s, time.UTC)
}

// FormatExtractionDate renders a date in the feed's dd.mm.yyyy format.
func FormatExtractionDate(t time.Time) string {
	return t.Format(extractionDateLayout)
}

// MergeSamples folds an incremental fetch into the existing dataset. Samples
// are identified by (station, extraction date); refetched samples replace the
// stored version in place, new ones append in fetch order. Neither input is
// mutated.
func MergeSamples(existing, fetched []RawSample) []RawSample {
	merged := make([]RawSample, len(existing), len(existing)+len(fetched))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, s := range merged {
		index[sampleKey(s)] = i
	}

	for _, s := range fetched {
		key := sampleKey(s)
		if i, ok := index[key]; ok {
			merged[i] = s
			continue
		}
		index[key] = len(merged)
		merged = append(merged, s)
	}
	return merged
}

func sampleKey(s RawSample) string {
	return s.Station + "|" + s.ExtractionDate
}

// LatestExtraction returns the most recent parseable extraction date in the
// dataset, or false when no sample carries a valid date. Used as the cursor
// for incremental sync.
func LatestExtraction(samples []RawSample) (time.Time, bool) {
	var latest time.Time
	var found bool
	for _, s := range samples {
		d, err := ParseExtractionDate(s.ExtractionDate)
		if err != nil {
			continue
		}
		if !found || d.After(latest) {
			latest = d
			found = true
		}
	}
	return latest, found
}
