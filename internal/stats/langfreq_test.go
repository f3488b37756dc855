package stats

import (
	"reflect"
	"testing"
)

func TestParseLangFreqPlainLabel(t *testing.T) {
	got, err := ParseLangFreq("fr")
	if err != nil {
		t.Fatalf("ParseLangFreq() error: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]int{"fr": 1}) {
		t.Fatalf("ParseLangFreq() = %v, want map[fr:1]", got)
	}
}

func TestParseLangFreqJSONObject(t *testing.T) {
	got, err := ParseLangFreq(`{"fr": 3, "de": 1}`)
	if err != nil {
		t.Fatalf("ParseLangFreq() error: %v", err)
	}
	want := map[string]int{"fr": 3, "de": 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseLangFreq() = %v, want %v", got, want)
	}
}

func TestParseLangFreqPythonRepr(t *testing.T) {
	got, err := ParseLangFreq(`{'fr': 2, None: 1}`)
	if err != nil {
		t.Fatalf("ParseLangFreq() error: %v", err)
	}
	want := map[string]int{"fr": 2, "None": 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseLangFreq() = %v, want %v", got, want)
	}
}

func TestParseLangFreqInvalidMapping(t *testing.T) {
	if _, err := ParseLangFreq(`{broken`); err == nil {
		t.Fatal("ParseLangFreq() accepted an unparseable mapping")
	}
}

func TestMergeLangFreq(t *testing.T) {
	got, err := MergeLangFreq([]any{"fr", "fr", "de", `{'fr': 2, None: 1}`})
	if err != nil {
		t.Fatalf("MergeLangFreq() error: %v", err)
	}
	want := map[string]int{"fr": 4, "de": 1, "None": 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MergeLangFreq() = %v, want %v", got, want)
	}
}

func TestMergeLangFreqRejectsNonString(t *testing.T) {
	if _, err := MergeLangFreq([]any{42}); err == nil {
		t.Fatal("MergeLangFreq() accepted a non-string value")
	}
}
