package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"paper-shelf/models"
)

// PaperStore ist der Speicher-Kollaborateur im Tag-Schema. Tags kommen roh zurück.
type PaperStore interface {
	ListAll(ctx context.Context) ([]models.Paper, error)
	GetByID(ctx context.Context, id uint) (*models.Paper, error)
	Insert(ctx context.Context, p *models.Paper) error
	Update(ctx context.Context, id uint, p *models.Paper) error
	SetImportance(ctx context.Context, id uint, important bool) error
}

// PaperInput sind die bereits geparsten Formularfelder im Tag-Schema.
type PaperInput struct {
	Submission
	Tags TagInput
}

// PaperView ist ein Paper mit dekodierten Tags für die Ausgabe.
type PaperView struct {
	models.Paper
	Tags []string `json:"tags"`
}

// NewPaperView dekodiert die Tags eines Papers.
func NewPaperView(p models.Paper) PaperView {
	return PaperView{Paper: p, Tags: DecodeTags(p.Tags)}
}

// PaperService verbindet Normalisierung, Validierung und Speicher im Tag-Schema.
type PaperService struct {
	Store   PaperStore
	Logger  *zap.Logger
	Matcher TagMatcher
}

// NewPaperService erstellt eine neue Instanz des PaperService.
func NewPaperService(store PaperStore, logger *zap.Logger, matcher TagMatcher) *PaperService {
	return &PaperService{Store: store, Logger: logger, Matcher: matcher}
}

func (s *PaperService) buildRecord(in PaperInput) (*models.Paper, error) {
	tags := NormalizeTagClassification(in.Tags)
	if err := ValidateSubmission(in.Submission); err != nil {
		return nil, err
	}
	return &models.Paper{
		Title:   strings.TrimSpace(in.Title),
		Summary: in.Summary,
		Link:    optionalString(in.Link),
		PDFPath: optionalString(in.PDFPath),
		Tags:    tags,
	}, nil
}

// Submit legt ein neues Paper an.
func (s *PaperService) Submit(ctx context.Context, in PaperInput) (*models.Paper, error) {
	p, err := s.buildRecord(in)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Insert(ctx, p); err != nil {
		s.Logger.Error("Failed to insert paper", zap.Error(err))
		return nil, err
	}
	s.Logger.Info("Paper created", zap.Uint("id", p.ID), zap.Strings("tags", DecodeTags(p.Tags)))
	return p, nil
}

// Edit ersetzt Titel, Zusammenfassung, Link, PDF und Tags vollständig.
func (s *PaperService) Edit(ctx context.Context, id uint, in PaperInput) (*models.Paper, error) {
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
	s.Logger.Info("Paper updated", zap.Uint("id", id))
	return updated, nil
}

// Get lädt ein Paper.
func (s *PaperService) Get(ctx context.Context, id uint) (*models.Paper, error) {
	p, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, id)
	}
	return p, nil
}

// List liefert alle Papers, älteste zuerst.
func (s *PaperService) List(ctx context.Context) ([]models.Paper, error) {
	return s.Store.ListAll(ctx)
}

// SetImportance setzt das Wichtig-Flag.
func (s *PaperService) SetImportance(ctx context.Context, id uint, important bool) error {
	if err := s.Store.SetImportance(ctx, id, important); err != nil {
		return translateStoreErr(err, id)
	}
	return nil
}

// ToggleImportance kehrt das Wichtig-Flag um und gibt den neuen Wert zurück.
func (s *PaperService) ToggleImportance(ctx context.Context, id uint) (bool, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if err := s.SetImportance(ctx, id, !p.Importance); err != nil {
		return false, err
	}
	return !p.Importance, nil
}

// TagIndex baut den Index über den aktuellen Bestand.
func (s *PaperService) TagIndex(ctx context.Context) (TagIndex, error) {
	papers, err := s.Store.ListAll(ctx)
	if err != nil {
		return TagIndex{}, err
	}
	return BuildTagIndex(papers), nil
}

// PapersByTag liefert alle Papers mit dem Tag, neueste zuerst.
func (s *PaperService) PapersByTag(ctx context.Context, tag string) ([]models.Paper, error) {
	papers, err := s.Store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return PapersWithTag(papers, tag), nil
}

// SearchTags beantwortet Autocomplete-Anfragen gegen das aktuelle Tag-Universum.
func (s *PaperService) SearchTags(ctx context.Context, query string) ([]string, error) {
	idx, err := s.TagIndex(ctx)
	if err != nil {
		return nil, err
	}
	return s.Matcher.Match(idx.Tags, query), nil
}
