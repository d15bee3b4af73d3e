package models

import (
	"time"
)

// Paper repräsentiert einen gespeicherten Artikel bzw. Lesezeichen im Tag-Schema.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title   string  `json:"title" gorm:"not null"`
	Summary string  `json:"summary,omitempty" gorm:"type:text"`
	Link    *string `json:"link,omitempty"`
	PDFPath *string `json:"pdf_path,omitempty" gorm:"column:pdf_path"`

	// Rohwert wie gespeichert: NULL, "a,b" (alt) oder `["a","b"]`.
	// Dekodiert wird ausschließlich über services.DecodeTags.
	Tags *string `json:"-" gorm:"type:text"`

	Importance bool `json:"importance" gorm:"default:false"`
}

// TableName gibt explizit den Tabellennamen an.
func (Paper) TableName() string {
	return "papers"
}
