package services

import (
	"sort"
	"strings"

	"paper-shelf/models"
)

// UncategorizedLabel gruppiert Papers ohne Unterkategorie.
const UncategorizedLabel = "Uncategorized"

// TagIndex ist die aus allen Papers abgeleitete Sicht für Startseite und Autocomplete.
type TagIndex struct {
	// Tags in der Reihenfolge des ersten Auftretens in der Eingabe.
	Tags        []string                `json:"tags"`
	LatestByTag map[string]models.Paper `json:"latest_by_tag"`
	Counts      map[string]int          `json:"counts"`
}

// newer entscheidet "latest by tag": späteres CreatedAt gewinnt, bei Gleichstand die höhere ID.
func newer(aCreated, bCreated int64, aID, bID uint) bool {
	if aCreated != bCreated {
		return aCreated > bCreated
	}
	return aID > bID
}

// BuildTagIndex berechnet Tag-Universum und neuestes Paper pro Tag.
func BuildTagIndex(papers []models.Paper) TagIndex {
	idx := TagIndex{
		Tags:        []string{},
		LatestByTag: map[string]models.Paper{},
		Counts:      map[string]int{},
	}
	for _, p := range papers {
		for _, tag := range DecodeTags(p.Tags) {
			cur, seen := idx.LatestByTag[tag]
			if !seen {
				idx.Tags = append(idx.Tags, tag)
				idx.LatestByTag[tag] = p
			} else if newer(p.CreatedAt.UnixNano(), cur.CreatedAt.UnixNano(), p.ID, cur.ID) {
				idx.LatestByTag[tag] = p
			}
			idx.Counts[tag]++
		}
	}
	return idx
}

// PapersWithTag liefert alle Papers mit genau diesem Tag, neueste zuerst.
func PapersWithTag(papers []models.Paper, tag string) []models.Paper {
	out := []models.Paper{}
	for _, p := range papers {
		for _, t := range DecodeTags(p.Tags) {
			if t == tag {
				out = append(out, p)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].CreatedAt.UnixNano(), out[j].CreatedAt.UnixNano(), out[i].ID, out[j].ID)
	})
	return out
}

// CategoryGroups gruppiert Papers einer Kategorie nach Unterkategorie.
type CategoryGroups struct {
	Category string                          `json:"category"`
	Order    []string                        `json:"order"`
	Groups   map[string][]models.LegacyPaper `json:"groups"`
}

// BuildCategoryIndex filtert exakt nach Kategorie und gruppiert nach Unterkategorie.
// Reihenfolge der Gruppen und innerhalb der Gruppen folgt der Eingabe.
func BuildCategoryIndex(papers []models.LegacyPaper, category string) CategoryGroups {
	out := CategoryGroups{
		Category: category,
		Order:    []string{},
		Groups:   map[string][]models.LegacyPaper{},
	}
	for _, p := range papers {
		if p.Category != category {
			continue
		}
		label := UncategorizedLabel
		if p.Subcategory != nil && strings.TrimSpace(*p.Subcategory) != "" {
			label = *p.Subcategory
		}
		if _, ok := out.Groups[label]; !ok {
			out.Order = append(out.Order, label)
		}
		out.Groups[label] = append(out.Groups[label], p)
	}
	return out
}

// Categories liefert die unterschiedlichen Kategorien in Eingabereihenfolge.
func Categories(papers []models.LegacyPaper) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, p := range papers {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// LatestByCategory liefert das neueste Paper pro Kategorie (gleiche Regel wie bei Tags).
func LatestByCategory(papers []models.LegacyPaper) map[string]models.LegacyPaper {
	out := map[string]models.LegacyPaper{}
	for _, p := range papers {
		cur, ok := out[p.Category]
		if !ok || newer(p.CreatedAt.UnixNano(), cur.CreatedAt.UnixNano(), p.ID, cur.ID) {
			out[p.Category] = p
		}
	}
	return out
}

// SubcategoriesByCategory baut die Zuordnung Kategorie -> beobachtete Unterkategorien
// (für abhängige Auswahllisten im Formular).
func SubcategoriesByCategory(papers []models.LegacyPaper) map[string][]string {
	out := map[string][]string{}
	seen := map[string]map[string]bool{}
	for _, p := range papers {
		if _, ok := out[p.Category]; !ok {
			out[p.Category] = []string{}
			seen[p.Category] = map[string]bool{}
		}
		if p.Subcategory == nil || *p.Subcategory == "" {
			continue
		}
		if !seen[p.Category][*p.Subcategory] {
			seen[p.Category][*p.Subcategory] = true
			out[p.Category] = append(out[p.Category], *p.Subcategory)
		}
	}
	return out
}

// SubcategoriesOf liefert die Unterkategorien einer Kategorie.
func SubcategoriesOf(papers []models.LegacyPaper, category string) []string {
	if subs, ok := SubcategoriesByCategory(papers)[category]; ok {
		return subs
	}
	return []string{}
}
