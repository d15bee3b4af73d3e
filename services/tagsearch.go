package services

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// EmptyQueryPolicy legt fest, was eine leere Suchanfrage liefert.
// Das entscheidet die aufrufende Schicht, nicht der Matcher.
type EmptyQueryPolicy int

const (
	EmptyQueryMatchesAll EmptyQueryPolicy = iota
	EmptyQueryMatchesNone
)

// ParseEmptyQueryPolicy liest "all" bzw. "none" aus der Konfiguration.
func ParseEmptyQueryPolicy(s string) (EmptyQueryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return EmptyQueryMatchesAll, nil
	case "none", "":
		return EmptyQueryMatchesNone, nil
	default:
		return 0, fmt.Errorf("unknown empty query policy %q", s)
	}
}

// SearchTags filtert das Tag-Universum per Teilstring-Vergleich ohne Groß/Kleinschreibung.
// Verglichen wird der ganze Tag, nicht einzelne Wörter. Leere Anfrage liefert alles.
func SearchTags(universe []string, query string) []string {
	return TagMatcher{EmptyQuery: EmptyQueryMatchesAll}.Match(universe, query)
}

// TagMatcher ist SearchTags mit der Leer-Politik und einem optionalen Limit der Aufrufer.
type TagMatcher struct {
	EmptyQuery EmptyQueryPolicy
	Limit      int // 0 = unbegrenzt
}

// Match liefert die Treffer in der Reihenfolge des Universums.
func (m TagMatcher) Match(universe []string, query string) []string {
	out := []string{}
	if query == "" && m.EmptyQuery == EmptyQueryMatchesNone {
		return out
	}
	needle := foldKey(query)
	for _, tag := range universe {
		if m.Limit > 0 && len(out) >= m.Limit {
			break
		}
		if strings.Contains(foldKey(tag), needle) {
			out = append(out, tag)
		}
	}
	return out
}

// foldKey: NFC, damit "é" als ein Zeichen oder als e+Akzent gleich behandelt wird.
func foldKey(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
