package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"paper-shelf/models"
)

// LegacyPaperStore ist der Speicher-Kollaborateur im Kategorie-Schema.
type LegacyPaperStore interface {
	ListAll(ctx context.Context) ([]models.LegacyPaper, error)
	GetByID(ctx context.Context, id uint) (*models.LegacyPaper, error)
	Insert(ctx context.Context, p *models.LegacyPaper) error
	Update(ctx context.Context, id uint, p *models.LegacyPaper) error
	SetImportance(ctx context.Context, id uint, important bool) error
}

// LegacyPaperInput sind die geparsten Formularfelder im Kategorie-Schema.
type LegacyPaperInput struct {
	Submission
	Category CategoryInput
}

// LegacyPaperService bedient Datenbanken, die noch nicht auf Tags migriert sind.
type LegacyPaperService struct {
	Store  LegacyPaperStore
	Logger *zap.Logger
}

// NewLegacyPaperService erstellt eine neue Instanz des LegacyPaperService.
func NewLegacyPaperService(store LegacyPaperStore, logger *zap.Logger) *LegacyPaperService {
	return &LegacyPaperService{Store: store, Logger: logger}
}

func (s *LegacyPaperService) buildRecord(in LegacyPaperInput) (*models.LegacyPaper, error) {
	class := NormalizeCategory(in.Category)
	if err := ValidateSubmission(in.Submission); err != nil {
		return nil, err
	}
	return &models.LegacyPaper{
		Title:       strings.TrimSpace(in.Title),
		Summary:     in.Summary,
		Link:        optionalString(in.Link),
		PDFPath:     optionalString(in.PDFPath),
		Category:    class.Category,
		Subcategory: class.Subcategory,
	}, nil
}

// Submit legt ein neues Paper an.
func (s *LegacyPaperService) Submit(ctx context.Context, in LegacyPaperInput) (*models.LegacyPaper, error) {
	p, err := s.buildRecord(in)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Insert(ctx, p); err != nil {
		s.Logger.Error("Failed to insert paper", zap.Error(err))
		return nil, err
	}
	s.Logger.Info("Paper created", zap.Uint("id", p.ID), zap.String("category", p.Category))
	return p, nil
}

// Edit ersetzt alle editierbaren Felder.
func (s *LegacyPaperService) Edit(ctx context.Context, id uint, in LegacyPaperInput) (*models.LegacyPaper, error) {
	p, err := s.buildRecord(in)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Update(ctx, id, p); err != nil {
		return nil, translateStoreErr(err, id)
	}
	updated, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, id)
	}
	return updated, nil
}

// Get lädt ein Paper.
func (s *LegacyPaperService) Get(ctx context.Context, id uint) (*models.LegacyPaper, error) {
	p, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, id)
	}
	return p, nil
}

// List liefert alle Papers, älteste zuerst.
func (s *LegacyPaperService) List(ctx context.Context) ([]models.LegacyPaper, error) {
	return s.Store.ListAll(ctx)
}

// SetImportance setzt das Wichtig-Flag.
func (s *LegacyPaperService) SetImportance(ctx context.Context, id uint, important bool) error {
	if err := s.Store.SetImportance(ctx, id, important); err != nil {
		return translateStoreErr(err, id)
	}
	return nil
}

// ToggleImportance kehrt das Wichtig-Flag um und gibt den neuen Wert zurück.
func (s *LegacyPaperService) ToggleImportance(ctx context.Context, id uint) (bool, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if err := s.SetImportance(ctx, id, !p.Importance); err != nil {
		return false, err
	}
	return !p.Importance, nil
}

// CategoryOverview ist die Startseite im Kategorie-Schema.
type CategoryOverview struct {
	Categories       []string                      `json:"categories"`
	LatestByCategory map[string]models.LegacyPaper `json:"latest_by_category"`
	Subcategories    map[string][]string           `json:"subcategories"`
}

// Overview liefert Kategorien, neuestes Paper pro Kategorie und die Unterkategorien.
func (s *LegacyPaperService) Overview(ctx context.Context) (CategoryOverview, error) {
	papers, err := s.Store.ListAll(ctx)
	if err != nil {
		return CategoryOverview{}, err
	}
	return CategoryOverview{
		Categories:       Categories(papers),
		LatestByCategory: LatestByCategory(papers),
		Subcategories:    SubcategoriesByCategory(papers),
	}, nil
}

// CategoryIndex gruppiert die Papers einer Kategorie nach Unterkategorie.
func (s *LegacyPaperService) CategoryIndex(ctx context.Context, category string) (CategoryGroups, error) {
	papers, err := s.Store.ListAll(ctx)
	if err != nil {
		return CategoryGroups{}, err
	}
	return BuildCategoryIndex(papers, category), nil
}

// Subcategories liefert die beobachteten Unterkategorien einer Kategorie.
func (s *LegacyPaperService) Subcategories(ctx context.Context, category string) ([]string, error) {
	papers, err := s.Store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return SubcategoriesOf(papers, category), nil
}
