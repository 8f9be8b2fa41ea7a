package textnorm

import (
	"strings"
	"testing"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

func TestNormalizeCollapsesWhitespaceAndLowercases(t *testing.T) {
	n := Default()

	q, err := n.Normalize("  Cooling   PUMP\toverheating \n")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if q.NormalizedText != "cooling pump overheating" {
		t.Fatalf("unexpected normalized text %q", q.NormalizedText)
	}
	if q.DisplayText != "Cooling Pump Overheating" {
		t.Fatalf("unexpected display text %q", q.DisplayText)
	}
	if q.RawText != "  Cooling   PUMP\toverheating \n" {
		t.Fatalf("raw text must be preserved, got %q", q.RawText)
	}
	if q.Equipment != domain.EquipmentUnknown {
		t.Fatalf("expected equipment to start Unknown, got %s", q.Equipment)
	}
}

func TestNormalizeRejectsBlankInput(t *testing.T) {
	n := Default()
	for _, raw := range []string{"", "   ", "\t\n"} {
		_, err := n.Normalize(raw)
		if !domain.IsKind(err, domain.ErrEmptyInput) {
			t.Fatalf("Normalize(%q) expected ErrEmptyInput, got %v", raw, err)
		}
	}
}

func TestNormalizeCorrectsMisspelledWords(t *testing.T) {
	n := Default()

	q, err := n.Normalize("coolng pumpp overheatng")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if q.NormalizedText != "cooling pump overheating" {
		t.Fatalf("expected corrected text, got %q", q.NormalizedText)
	}
}

func TestNormalizeLeavesUnknownTokensUnchanged(t *testing.T) {
	n := Default()

	q, err := n.Normalize("Pump #2 on Iona: xyzzyq reading 85C")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := "pump #2 on iona: xyzzyq reading 85c"
	if q.NormalizedText != want {
		t.Fatalf("expected %q, got %q", want, q.NormalizedText)
	}
}

func TestNormalizeKeepsPunctuationAroundCorrectedWord(t *testing.T) {
	n := New([]string{"vibration"})

	q, err := n.Normalize("(vibraton),")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if q.NormalizedText != "(vibration)," {
		t.Fatalf("unexpected text %q", q.NormalizedText)
	}
}

func TestNormalizeWithoutDictionarySkipsCorrection(t *testing.T) {
	n := New(nil)

	q, err := n.Normalize("coolng pumpp")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if q.NormalizedText != "coolng pumpp" {
		t.Fatalf("expected text unchanged, got %q", q.NormalizedText)
	}
}

func TestNormalizeFoldsCompatibilityCharacters(t *testing.T) {
	n := Default()

	q, err := n.Normalize("ＭＡＩＮ engine")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if q.NormalizedText != "main engine" {
		t.Fatalf("expected fullwidth letters folded, got %q", q.NormalizedText)
	}
}

func TestParseDictionarySkipsCommentsAndBlankLines(t *testing.T) {
	words, err := ParseDictionary(strings.NewReader("# header\n\npump\n  valve  \n"))
	if err != nil {
		t.Fatalf("ParseDictionary() error = %v", err)
	}
	if len(words) != 2 || words[0] != "pump" || words[1] != "valve" {
		t.Fatalf("unexpected words %v", words)
	}
}

func TestNormalizeLeavesEverydayWordsAndInflectionsAlone(t *testing.T) {
	q, err := Default().Normalize("Radar display blank after purifier vibrating")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if q.NormalizedText != "radar display blank after purifier vibrating" {
		t.Fatalf("valid words were rewritten: %q", q.NormalizedText)
	}

	q, err = New([]string{"vibration", "bank", "leak"}).Normalize("blank vibrating leaks")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if q.NormalizedText != "blank vibrating leaks" {
		t.Fatalf("expected common words and inflections unchanged, got %q", q.NormalizedText)
	}
}
