package contracts

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestamp_FixedWidthRendering(t *testing.T) {
	// Trailing fractional zeros must not be trimmed: the stores order by the
	// rendered text, and "00.5Z" would sort after "00.51Z" lexically.
	earlier := Timestamp(time.Date(2026, 8, 31, 0, 0, 0, 500_000_000, time.UTC))
	later := Timestamp(time.Date(2026, 8, 31, 0, 0, 0, 510_000_000, time.UTC))

	rawEarlier, err := json.Marshal(earlier)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	rawLater, err := json.Marshal(later)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	if len(rawEarlier) != len(rawLater) {
		t.Fatalf("renderings differ in width: %s vs %s", rawEarlier, rawLater)
	}
	if string(rawEarlier) >= string(rawLater) {
		t.Fatalf("lexical order does not match chronological order: %s >= %s", rawEarlier, rawLater)
	}
}

func TestTimestamp_RoundTrip(t *testing.T) {
	original := Timestamp(time.Date(2026, 8, 31, 12, 34, 56, 789_000_000, time.UTC))
	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var decoded Timestamp
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if !decoded.Time().Equal(original.Time()) {
		t.Fatalf("round trip mismatch: %v != %v", decoded.Time(), original.Time())
	}

	// Renderings without the full fraction still parse.
	if err := json.Unmarshal([]byte(`"2026-08-31T12:34:56Z"`), &decoded); err != nil {
		t.Fatalf("Unmarshal of whole-second rendering returned error: %v", err)
	}
}
