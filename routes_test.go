package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-shelf/config"
	"paper-shelf/models"
	"paper-shelf/storage"
	"paper-shelf/storage/storagetest"
)

const minimalPDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

type paperResponse struct {
	ID         uint     `json:"id"`
	Title      string   `json:"title"`
	Link       string   `json:"link"`
	PDFPath    string   `json:"pdf_path"`
	Tags       []string `json:"tags"`
	Importance bool     `json:"importance"`
}

type testServer struct {
	router    *gin.Engine
	db        *gorm.DB
	uploadDir string
}

func newTestServer(t *testing.T, mode string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var db *gorm.DB
	if mode == "legacy" {
		db = storagetest.Migrated(t, &models.LegacyPaper{})
	} else {
		db = storagetest.Migrated(t, &models.Paper{})
	}
	uploadDir := t.TempDir()
	pdfs, err := storage.NewLocalPDFStore(uploadDir, "/uploads")
	require.NoError(t, err)

	cfg := &config.Config{
		ClassificationMode:  mode,
		TagSearchEmptyQuery: "none",
		MaxUploadMB:         1,
	}
	router, err := buildRouter(cfg, db, pdfs, zap.NewNop())
	require.NoError(t, err)
	return &testServer{router: router, db: db, uploadDir: uploadDir}
}

func (s *testServer) do(method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return s.do(method, target, "application/json", body)
}

func multipartBody(t *testing.T, fields map[string]string, filename string, file []byte) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("pdf", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), buf.Bytes()
}

func countPapers(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Table("papers").Count(&n).Error)
	return n
}

func TestCreatePaperRequiresLinkOrPDF(t *testing.T) {
	s := newTestServer(t, "tags")

	w := s.doJSON(t, http.MethodPost, "/papers", gin.H{"title": "Valid title", "summary": "valid", "tags": []string{"ml"}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "link", resp["field"])
	assert.Zero(t, countPapers(t, s.db))

	w = s.doJSON(t, http.MethodPost, "/papers", gin.H{"title": "  ", "link": "https://x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAndSearchTags(t *testing.T) {
	s := newTestServer(t, "tags")

	w := s.doJSON(t, http.MethodPost, "/papers", gin.H{
		"title":    "BERT",
		"link":     "https://arxiv.org/abs/1810.04805",
		"tags":     []string{"ml"},
		"new_tags": "ml, nlp",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created paperResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, []string{"ml", "nlp"}, created.Tags)

	// einzelner String als Auswahl
	w = s.doJSON(t, http.MethodPost, "/papers", gin.H{"title": "HTML", "link": "https://w3.org", "tags": "html5"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/papers/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got paperResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "BERT", got.Title)
	assert.Equal(t, []string{"ml", "nlp"}, got.Tags)

	w = s.do(http.MethodGet, "/tags", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var idx struct {
		Tags        []string                 `json:"tags"`
		LatestByTag map[string]paperResponse `json:"latest_by_tag"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &idx))
	assert.Equal(t, []string{"ml", "nlp", "html5"}, idx.Tags)
	assert.Equal(t, uint(2), idx.LatestByTag["html5"].ID)

	var search struct {
		Query string   `json:"query"`
		Tags  []string `json:"tags"`
	}
	w = s.do(http.MethodGet, "/search/tags?q=+NL+", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &search))
	assert.Equal(t, "NL", search.Query)
	assert.Equal(t, []string{"nlp"}, search.Tags)

	w = s.do(http.MethodGet, "/search/tags?q=", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &search))
	assert.Empty(t, search.Tags)

	w = s.do(http.MethodGet, "/tags/nlp/papers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var byTag []paperResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byTag))
	require.Len(t, byTag, 1)
	assert.Equal(t, "BERT", byTag[0].Title)
}

func TestEditPaper(t *testing.T) {
	s := newTestServer(t, "tags")

	w := s.doJSON(t, http.MethodPost, "/papers", gin.H{"title": "a", "link": "https://a", "new_tags": "x,y"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.doJSON(t, http.MethodPut, "/papers/1", gin.H{"title": "b", "link": "https://b"})
	require.Equal(t, http.StatusOK, w.Code)
	var edited paperResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &edited))
	assert.Equal(t, "b", edited.Title)
	assert.Empty(t, edited.Tags)

	w = s.doJSON(t, http.MethodPut, "/papers/99", gin.H{"title": "b", "link": "https://b"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(t, http.MethodPut, "/papers/abc", gin.H{"title": "b", "link": "https://b"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/papers/42", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportanceRoute(t *testing.T) {
	s := newTestServer(t, "tags")
	w := s.doJSON(t, http.MethodPost, "/papers", gin.H{"title": "a", "link": "https://a"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Importance bool `json:"importance"`
	}
	w = s.do(http.MethodPatch, "/papers/1/importance", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Importance)

	w = s.doJSON(t, http.MethodPatch, "/papers/1/importance", gin.H{"importance": false})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Importance)

	w = s.do(http.MethodPatch, "/papers/7/importance", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMultipartUpload(t *testing.T) {
	s := newTestServer(t, "tags")

	ct, body := multipartBody(t, map[string]string{"title": "Scan", "new_tags": "pdf"}, "My Paper.pdf", []byte(minimalPDF))
	w := s.do(http.MethodPost, "/papers", ct, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created paperResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, strings.HasPrefix(created.PDFPath, "/uploads/"))
	assert.True(t, strings.HasSuffix(created.PDFPath, "-My-Paper.pdf"))
	assert.Equal(t, []string{"pdf"}, created.Tags)

	_, err := os.Stat(filepath.Join(s.uploadDir, filepath.Base(created.PDFPath)))
	require.NoError(t, err)

	w = s.do(http.MethodGet, created.PDFPath, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMultipartRejectsNonPDF(t *testing.T) {
	s := newTestServer(t, "tags")

	ct, body := multipartBody(t, map[string]string{"title": "Notes"}, "notes.pdf", []byte("just some text"))
	w := s.do(http.MethodPost, "/papers", ct, body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pdf", resp["field"])

	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, countPapers(t, s.db))
}

func TestMultipartWithoutTitleStoresNothing(t *testing.T) {
	s := newTestServer(t, "tags")

	ct, body := multipartBody(t, map[string]string{"title": ""}, "a.pdf", []byte(minimalPDF))
	w := s.do(http.MethodPost, "/papers", ct, body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEditUnknownPaperStoresNoPDF(t *testing.T) {
	for _, mode := range []string{"tags", "legacy"} {
		t.Run(mode, func(t *testing.T) {
			s := newTestServer(t, mode)

			ct, body := multipartBody(t, map[string]string{"title": "x", "category": "Physics"}, "a.pdf", []byte(minimalPDF))
			w := s.do(http.MethodPut, "/papers/999", ct, body)
			require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

			entries, err := os.ReadDir(s.uploadDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestEditPaperWithPDF(t *testing.T) {
	s := newTestServer(t, "tags")
	w := s.doJSON(t, http.MethodPost, "/papers", gin.H{"title": "A", "link": "https://a"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	ct, body := multipartBody(t, map[string]string{"title": "A"}, "a.pdf", []byte(minimalPDF))
	w = s.do(http.MethodPut, "/papers/1", ct, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var edited paperResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &edited))
	require.True(t, strings.HasPrefix(edited.PDFPath, "/uploads/"))

	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCreatePaperIgnoresObjectTags(t *testing.T) {
	s := newTestServer(t, "tags")

	w := s.doJSON(t, http.MethodPost, "/papers", gin.H{"title": "A", "link": "https://a", "tags": gin.H{"a": 1}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created paperResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Empty(t, created.Tags)
}

func TestLegacyRoutes(t *testing.T) {
	s := newTestServer(t, "legacy")

	w := s.doJSON(t, http.MethodPost, "/papers", gin.H{
		"title":           "Lasers",
		"link":            "https://a",
		"category":        "Physics",
		"new_subcategory": "Optics",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.LegacyPaper
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Physics", created.Category)
	require.NotNil(t, created.Subcategory)
	assert.Equal(t, "Optics", *created.Subcategory)

	w = s.do(http.MethodGet, "/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var overview struct {
		Categories []string `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &overview))
	assert.Equal(t, []string{"Physics"}, overview.Categories)

	w = s.do(http.MethodGet, "/subcategories/Physics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var subs struct {
		Subcategories []string `json:"subcategories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subs))
	assert.Equal(t, []string{"Optics"}, subs.Subcategories)

	w = s.do(http.MethodGet, "/categories/Physics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var groups struct {
		Order []string `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &groups))
	assert.Equal(t, []string{"Optics"}, groups.Order)

	w = s.do(http.MethodPatch, "/papers/1/importance", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/search/tags?q=x", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "tags")
	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"tags"`)
}

func TestPrepareSchemaRefusesLegacyTableWithoutAutoMigrate(t *testing.T) {
	db := storagetest.Migrated(t, &models.LegacyPaper{})
	cfg := &config.Config{}

	err := prepareSchema(context.Background(), cfg, db, "tags", zap.NewNop())
	require.Error(t, err)

	cfg.AutoMigrateTags = true
	require.NoError(t, prepareSchema(context.Background(), cfg, db, "tags", zap.NewNop()))
	assert.False(t, db.Migrator().HasColumn("papers", "category"))
	assert.True(t, db.Migrator().HasTable(&models.MigrationRun{}))

	require.Error(t, prepareSchema(context.Background(), cfg, db, "legacy", zap.NewNop()))
}
