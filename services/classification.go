package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ClassificationMode bestimmt, welches Schema (und damit welche Vorrangregel) gilt.
type ClassificationMode string

const (
	// ModeTags: beliebig viele Tags, Auswahl und Freitext werden vereinigt.
	ModeTags ClassificationMode = "tags"
	// ModeLegacy: eine Kategorie + optionale Unterkategorie, Freitext ersetzt die Auswahl.
	ModeLegacy ClassificationMode = "legacy"
)

// ParseClassificationMode prüft den konfigurierten Modus.
func ParseClassificationMode(s string) (ClassificationMode, error) {
	switch m := ClassificationMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeTags, ModeLegacy:
		return m, nil
	default:
		return "", fmt.Errorf("unknown classification mode %q", s)
	}
}

// TagInput sind die Roh-Felder eines Formulars im Tag-Schema.
type TagInput struct {
	Selected []string // bereits existierende Tags aus der Auswahl
	FreeText string   // neue Tags, kommagetrennt
}

// CoerceSelection macht aus einem Request-Wert (fehlend, Skalar oder Array) immer eine Liste.
// Objekte und verschachtelte Listen sind keine Tags und fallen weg.
func CoerceSelection(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string{}, t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, el := range t {
			if tag, ok := scalarTag(el); ok {
				out = append(out, tag)
			}
		}
		return out
	default:
		if tag, ok := scalarTag(t); ok {
			return []string{tag}
		}
		return []string{}
	}
}

func scalarTag(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool, float32, float64, int, int32, int64, uint, uint32, uint64, json.Number:
		return fmt.Sprint(t), true
	default:
		return "", false
	}
}

// NormalizeTags vereinigt Auswahl und Freitext: erst die Auswahl, dann neue Tags
// in Eingabereihenfolge, Duplikate werden übersprungen.
func NormalizeTags(in TagInput) []string {
	tags := make([]string, 0, len(in.Selected))
	for _, s := range in.Selected {
		tags = append(tags, strings.TrimSpace(s))
	}
	if strings.TrimSpace(in.FreeText) != "" {
		tags = append(tags, SplitTagList(in.FreeText)...)
	}
	return DedupeTags(tags)
}

// NormalizeTagClassification liefert den zu speichernden Spaltenwert.
func NormalizeTagClassification(in TagInput) *string {
	return EncodeTags(NormalizeTags(in))
}

// CategoryInput sind die Roh-Felder eines Formulars im alten Schema.
type CategoryInput struct {
	Category       string
	NewCategory    string
	Subcategory    string
	NewSubcategory string
}

// LegacyClassification ist der zu speichernde Wert im alten Schema.
type LegacyClassification struct {
	Category    string
	Subcategory *string
}

// NormalizeCategory wendet die alte Regel an: nicht-leerer Freitext gewinnt,
// sonst zählt die Auswahl. Es wird nicht vereinigt.
func NormalizeCategory(in CategoryInput) LegacyClassification {
	out := LegacyClassification{
		Category: pickFreeText(in.NewCategory, in.Category),
	}
	if sub := pickFreeText(in.NewSubcategory, in.Subcategory); sub != "" {
		out.Subcategory = &sub
	}
	return out
}

func pickFreeText(freeText, selected string) string {
	if s := strings.TrimSpace(freeText); s != "" {
		return s
	}
	return strings.TrimSpace(selected)
}

// Submission sind die gemeinsamen Felder beim Anlegen oder Bearbeiten.
type Submission struct {
	Title   string
	Summary string
	Link    string
	PDFPath string
}

// ValidateSubmission prüft die Pflichtfelder. Läuft nach der Normalisierung.
func ValidateSubmission(s Submission) error {
	if strings.TrimSpace(s.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(s.Link) == "" && strings.TrimSpace(s.PDFPath) == "" {
		return &ValidationError{Field: "link", Message: "either a link or a pdf must be provided"}
	}
	return nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
