package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// tagDecoder liest einen gespeicherten Tag-Wert. ok=false heißt: Format passt nicht,
// nächste Strategie versuchen.
type tagDecoder func(raw string) (tags []string, ok bool)

// Reihenfolge ist fest: kanonisches JSON-Array zuerst, dann das alte Komma-Format.
var tagDecoders = []tagDecoder{
	decodeJSONTags,
	decodeDelimitedTags,
}

// DecodeTags liest die Tags eines Papers aus dem gespeicherten Rohwert.
// Der Wert kann NULL, eine kommagetrennte Liste oder ein JSON-Array sein.
// Fehlerhafte Daten liefern eine leere Menge, niemals einen Fehler.
func DecodeTags(raw *string) []string {
	if raw == nil {
		return []string{}
	}
	for _, decode := range tagDecoders {
		if tags, ok := decode(*raw); ok {
			return tags
		}
	}
	return []string{}
}

// EncodeTags erzeugt den kanonischen Spaltenwert. Eine leere Menge wird zu NULL.
func EncodeTags(tags []string) *string {
	tags = DedupeTags(tags)
	if len(tags) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tags); err != nil {
		// []string lässt sich immer serialisieren
		return nil
	}
	s := strings.TrimSuffix(buf.String(), "\n")
	return &s
}

// IsCanonicalTags meldet, ob raw bereits ein JSON-Array ist.
func IsCanonicalTags(raw string) bool {
	_, ok := decodeJSONTags(raw)
	return ok
}

// SplitTagList zerlegt eine kommagetrennte Eingabe in getrimmte, nicht-leere Tags.
func SplitTagList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DedupeTags entfernt Duplikate und leere Einträge, die erste Position bleibt erhalten.
func DedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func decodeJSONTags(raw string) ([]string, bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	tags := make([]string, 0, len(arr))
	for _, el := range arr {
		switch t := el.(type) {
		case nil:
			continue
		case string:
			tags = append(tags, t)
		default:
			tags = append(tags, fmt.Sprint(t))
		}
	}
	return DedupeTags(tags), true
}

func decodeDelimitedTags(raw string) ([]string, bool) {
	return DedupeTags(SplitTagList(raw)), true
}
