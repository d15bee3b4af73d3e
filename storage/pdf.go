package storage

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const pdfMIME = "application/pdf"

// ErrNotPDF: die hochgeladene Datei ist kein PDF.
var ErrNotPDF = errors.New("only pdf files are allowed")

// PDFStore nimmt den Inhalt eines Uploads und liefert eine Referenz (Pfad oder URL).
type PDFStore interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

// ValidatePDF prüft den Inhalt per Magic Bytes; Dateiname und Content-Type des
// Clients werden nicht geglaubt.
func ValidatePDF(data []byte) error {
	if len(data) == 0 || !mimetype.Detect(data).Is(pdfMIME) {
		return ErrNotPDF
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// objectName macht aus dem Original-Dateinamen einen eindeutigen, URL-sicheren Namen.
func objectName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		base = "paper"
	}
	if len(base) > 80 {
		base = base[:80]
	}
	return uuid.NewString() + "-" + base + ".pdf"
}
