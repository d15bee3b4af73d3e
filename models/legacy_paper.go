package models

import "time"

// LegacyPaper ist das Paper im alten Kategorie/Unterkategorie-Schema.
// Beide Structs teilen sich die Tabelle "papers"; welches gilt, bestimmt die Schema-Version.
type LegacyPaper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title   string  `json:"title" gorm:"not null"`
	Summary string  `json:"summary,omitempty" gorm:"type:text"`
	Link    *string `json:"link,omitempty"`
	PDFPath *string `json:"pdf_path,omitempty" gorm:"column:pdf_path"`

	Category    string  `json:"category"`
	Subcategory *string `json:"subcategory,omitempty"`

	Importance bool `json:"importance" gorm:"default:false"`
}

// TableName gibt explizit den Tabellennamen an.
func (LegacyPaper) TableName() string {
	return "papers"
}
