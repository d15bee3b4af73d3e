package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-shelf/config"
	"paper-shelf/models"
	"paper-shelf/services"
	"paper-shelf/storage"
)

// buildRouter registriert die Routen des konfigurierten Modus.
func buildRouter(cfg *config.Config, db *gorm.DB, pdfs storage.PDFStore, log *zap.Logger) (*gin.Engine, error) {
	mode, err := services.ParseClassificationMode(cfg.ClassificationMode)
	if err != nil {
		return nil, err
	}
	policy, err := services.ParseEmptyQueryPolicy(cfg.TagSearchEmptyQuery)
	if err != nil {
		return nil, err
	}

	router := gin.Default()
	router.MaxMultipartMemory = cfg.MaxUploadMB << 20
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	setupHealthRoute(router, db, mode)

	if local, ok := pdfs.(*storage.LocalPDFStore); ok {
		router.Static(local.URLPath, local.Dir)
	}

	uploads := &uploader{store: pdfs, maxBytes: cfg.MaxUploadMB << 20}
	switch mode {
	case services.ModeLegacy:
		svc := services.NewLegacyPaperService(storage.NewLegacyPaperStore(db), log)
		setupLegacyPaperRoutes(router, svc, uploads, log)
		setupCategoryRoutes(router, svc, log)
	default:
		matcher := services.TagMatcher{EmptyQuery: policy, Limit: cfg.TagSearchLimit}
		svc := services.NewPaperService(storage.NewPaperStore(db), log, matcher)
		setupPaperRoutes(router, svc, uploads, log)
		setupTagRoutes(router, svc, log)
	}
	return router, nil
}

func setupHealthRoute(router *gin.Engine, db *gorm.DB, mode services.ClassificationMode) {
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
	})
}

// paperRequest ist der Body von POST/PUT, als JSON oder als Formular.
// tags darf fehlen, ein einzelner String oder eine Liste sein.
type paperRequest struct {
	Title          string `json:"title"`
	Summary        string `json:"summary"`
	Link           string `json:"link"`
	PDFPath        string `json:"pdf_path"`
	Tags           any    `json:"tags"`
	NewTags        string `json:"new_tags"`
	Category       string `json:"category"`
	NewCategory    string `json:"new_category"`
	Subcategory    string `json:"subcategory"`
	NewSubcategory string `json:"new_subcategory"`
}

func (r paperRequest) submission() services.Submission {
	return services.Submission{Title: r.Title, Summary: r.Summary, Link: r.Link, PDFPath: r.PDFPath}
}

func (r paperRequest) tagInput() services.TagInput {
	return services.TagInput{Selected: services.CoerceSelection(r.Tags), FreeText: r.NewTags}
}

func (r paperRequest) categoryInput() services.CategoryInput {
	return services.CategoryInput{
		Category:       r.Category,
		NewCategory:    r.NewCategory,
		Subcategory:    r.Subcategory,
		NewSubcategory: r.NewSubcategory,
	}
}

func isForm(c *gin.Context) bool {
	ct := c.ContentType()
	return ct == gin.MIMEMultipartPOSTForm || ct == gin.MIMEPOSTForm
}

// uploader nimmt das optionale PDF eines Formulars entgegen.
type uploader struct {
	store    storage.PDFStore
	maxBytes int64
}

// pendingPDF ist ein geprüfter, noch nicht gespeicherter Upload.
type pendingPDF struct {
	filename string
	data     []byte
}

// bindPaperRequest liest den Body und prüft ein hochgeladenes PDF, speichert es aber nicht.
// Gespeichert wird erst mit save, wenn feststeht, dass der Request durchgeht.
func (u *uploader) bindPaperRequest(c *gin.Context) (paperRequest, *pendingPDF, error) {
	var req paperRequest
	if !isForm(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, nil, &services.ValidationError{Field: "body", Message: "invalid request body"}
		}
		return req, nil, nil
	}

	req = paperRequest{
		Title:          c.PostForm("title"),
		Summary:        c.PostForm("summary"),
		Link:           c.PostForm("link"),
		PDFPath:        c.PostForm("pdf_path"),
		NewTags:        c.PostForm("new_tags"),
		Category:       c.PostForm("category"),
		NewCategory:    c.PostForm("new_category"),
		Subcategory:    c.PostForm("subcategory"),
		NewSubcategory: c.PostForm("new_subcategory"),
	}
	if tags := c.PostFormArray("tags"); len(tags) > 0 {
		req.Tags = tags
	}

	fh, err := c.FormFile("pdf")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, &services.ValidationError{Field: "pdf", Message: "invalid upload"}
	}
	if u.maxBytes > 0 && fh.Size > u.maxBytes {
		return req, nil, &services.ValidationError{Field: "pdf", Message: "file too large"}
	}

	pending := req.submission()
	pending.PDFPath = fh.Filename
	if err := services.ValidateSubmission(pending); err != nil {
		return req, nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return req, nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return req, nil, err
	}
	if err := storage.ValidatePDF(data); err != nil {
		return req, nil, &services.ValidationError{Field: "pdf", Message: err.Error()}
	}
	return req, &pendingPDF{filename: fh.Filename, data: data}, nil
}

// save legt den Upload ab und trägt die Referenz in req ein. pdf == nil ist kein Fehler.
func (u *uploader) save(c *gin.Context, req *paperRequest, pdf *pendingPDF) error {
	if pdf == nil {
		return nil
	}
	ref, err := u.store.Save(c.Request.Context(), pdf.filename, pdf.data)
	if err != nil {
		return err
	}
	req.PDFPath = ref
	return nil
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// writeError bildet Service-Fehler auf HTTP-Status ab.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
	default:
		log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type importanceRequest struct {
	Importance *bool `json:"importance"`
}

// bindImportance liefert nil, wenn der Body leer ist; dann wird umgeschaltet.
func bindImportance(c *gin.Context) (*bool, error) {
	if c.Request.ContentLength == 0 {
		return nil, nil
	}
	var req importanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, &services.ValidationError{Field: "importance", Message: "invalid request body"}
	}
	return req.Importance, nil
}

func paperViews(papers []models.Paper) []services.PaperView {
	views := make([]services.PaperView, 0, len(papers))
	for _, p := range papers {
		views = append(views, services.NewPaperView(p))
	}
	return views
}

func setupPaperRoutes(router *gin.Engine, svc *services.PaperService, uploads *uploader, log *zap.Logger) {
	rg := router.Group("/papers")

	rg.GET("", func(c *gin.Context) {
		papers, err := svc.List(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, paperViews(papers))
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		p, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, services.NewPaperView(*p))
	})

	rg.POST("", func(c *gin.Context) {
		req, pdf, err := uploads.bindPaperRequest(c)
		if err != nil {
			writeError(c, log, err)
			return
		}
		if err := uploads.save(c, &req, pdf); err != nil {
			writeError(c, log, err)
			return
		}
		p, err := svc.Submit(c.Request.Context(), services.PaperInput{Submission: req.submission(), Tags: req.tagInput()})
		if err != nil {
			writeError(c, log, err)
			return
		}
		papersCreatedCounter.Inc()
		c.JSON(http.StatusCreated, services.NewPaperView(*p))
	})

	rg.PUT("/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		req, pdf, err := uploads.bindPaperRequest(c)
		if err != nil {
			writeError(c, log, err)
			return
		}
		if pdf != nil {
			// unbekannte ID: kein Upload
			if _, err := svc.Get(c.Request.Context(), id); err != nil {
				writeError(c, log, err)
				return
			}
			if err := uploads.save(c, &req, pdf); err != nil {
				writeError(c, log, err)
				return
			}
		}
		p, err := svc.Edit(c.Request.Context(), id, services.PaperInput{Submission: req.submission(), Tags: req.tagInput()})
		if err != nil {
			writeError(c, log, err)
			return
		}
		papersUpdatedCounter.Inc()
		c.JSON(http.StatusOK, services.NewPaperView(*p))
	})

	rg.PATCH("/:id/importance", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		want, err := bindImportance(c)
		if err != nil {
			writeError(c, log, err)
			return
		}
		var important bool
		if want == nil {
			important, err = svc.ToggleImportance(c.Request.Context(), id)
		} else {
			important, err = *want, svc.SetImportance(c.Request.Context(), id, *want)
		}
		if err != nil {
			writeError(c, log, err)
			return
		}
		importanceChangesCounter.Inc()
		c.JSON(http.StatusOK, gin.H{"id": id, "importance": important})
	})
}

func setupTagRoutes(router *gin.Engine, svc *services.PaperService, log *zap.Logger) {
	router.GET("/tags", func(c *gin.Context) {
		idx, err := svc.TagIndex(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		latest := make(map[string]services.PaperView, len(idx.LatestByTag))
		for tag, p := range idx.LatestByTag {
			latest[tag] = services.NewPaperView(p)
		}
		c.JSON(http.StatusOK, gin.H{"tags": idx.Tags, "latest_by_tag": latest, "counts": idx.Counts})
	})

	router.GET("/tags/:tag/papers", func(c *gin.Context) {
		papers, err := svc.PapersByTag(c.Request.Context(), c.Param("tag"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, paperViews(papers))
	})

	router.GET("/search/tags", func(c *gin.Context) {
		query := strings.TrimSpace(c.Query("q"))
		hits, err := svc.SearchTags(c.Request.Context(), query)
		if err != nil {
			writeError(c, log, err)
			return
		}
		tagSearchesCounter.Inc()
		c.JSON(http.StatusOK, gin.H{"query": query, "tags": hits})
	})
}

func setupLegacyPaperRoutes(router *gin.Engine, svc *services.LegacyPaperService, uploads *uploader, log *zap.Logger) {
	rg := router.Group("/papers")

	rg.GET("", func(c *gin.Context) {
		papers, err := svc.List(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		p, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	})

	rg.POST("", func(c *gin.Context) {
		req, pdf, err := uploads.bindPaperRequest(c)
		if err != nil {
			writeError(c, log, err)
			return
		}
		if err := uploads.save(c, &req, pdf); err != nil {
			writeError(c, log, err)
			return
		}
		p, err := svc.Submit(c.Request.Context(), services.LegacyPaperInput{Submission: req.submission(), Category: req.categoryInput()})
		if err != nil {
			writeError(c, log, err)
			return
		}
		papersCreatedCounter.Inc()
		c.JSON(http.StatusCreated, p)
	})

	rg.PUT("/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		req, pdf, err := uploads.bindPaperRequest(c)
		if err != nil {
			writeError(c, log, err)
			return
		}
		if pdf != nil {
			// unbekannte ID: kein Upload
			if _, err := svc.Get(c.Request.Context(), id); err != nil {
				writeError(c, log, err)
				return
			}
			if err := uploads.save(c, &req, pdf); err != nil {
				writeError(c, log, err)
				return
			}
		}
		p, err := svc.Edit(c.Request.Context(), id, services.LegacyPaperInput{Submission: req.submission(), Category: req.categoryInput()})
		if err != nil {
			writeError(c, log, err)
			return
		}
		papersUpdatedCounter.Inc()
		c.JSON(http.StatusOK, p)
	})

	rg.PATCH("/:id/importance", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		want, err := bindImportance(c)
		if err != nil {
			writeError(c, log, err)
			return
		}
		var important bool
		if want == nil {
			important, err = svc.ToggleImportance(c.Request.Context(), id)
		} else {
			important, err = *want, svc.SetImportance(c.Request.Context(), id, *want)
		}
		if err != nil {
			writeError(c, log, err)
			return
		}
		importanceChangesCounter.Inc()
		c.JSON(http.StatusOK, gin.H{"id": id, "importance": important})
	})
}

func setupCategoryRoutes(router *gin.Engine, svc *services.LegacyPaperService, log *zap.Logger) {
	router.GET("/categories", func(c *gin.Context) {
		overview, err := svc.Overview(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, overview)
	})

	router.GET("/categories/:cat", func(c *gin.Context) {
		groups, err := svc.CategoryIndex(c.Request.Context(), c.Param("cat"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, groups)
	})

	router.GET("/subcategories/:category", func(c *gin.Context) {
		subs, err := svc.Subcategories(c.Request.Context(), c.Param("category"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"category": c.Param("category"), "subcategories": subs})
	})
}
