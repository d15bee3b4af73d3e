package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// LocalPDFStore legt PDFs im Dateisystem ab; der Server liefert das Verzeichnis statisch aus.
type LocalPDFStore struct {
	Dir     string
	URLPath string
}

// NewLocalPDFStore legt das Zielverzeichnis bei Bedarf an.
func NewLocalPDFStore(dir, urlPath string) (*LocalPDFStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalPDFStore{Dir: dir, URLPath: urlPath}, nil
}

// Save schreibt die Datei und gibt den URL-Pfad zurück, unter dem sie erreichbar ist.
func (s *LocalPDFStore) Save(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := objectName(filename)
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload %s: %w", name, err)
	}
	return path.Join(s.URLPath, name), nil
}
