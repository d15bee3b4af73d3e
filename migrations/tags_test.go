package migrations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-shelf/models"
	"paper-shelf/services"
	"paper-shelf/storage"
	"paper-shelf/storage/storagetest"
)

func strPtr(s string) *string { return &s }

func seedLegacy(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.AutoMigrate(&models.LegacyPaper{}))
	rows := []models.LegacyPaper{
		{Title: "Lasers", Link: strPtr("https://a"), Category: "Physics", Subcategory: strPtr("Optics"), Importance: true},
		{Title: "Genome", PDFPath: strPtr("/uploads/g.pdf"), Category: "Biology"},
		{Title: "Loose", Link: strPtr("https://c"), Category: ""},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
}

func tagsByTitle(t *testing.T, db *gorm.DB) map[string]*string {
	t.Helper()
	papers, err := storage.NewPaperStore(db).ListAll(context.Background())
	require.NoError(t, err)
	out := map[string]*string{}
	for _, p := range papers {
		out[p.Title] = p.Tags
	}
	return out
}

func TestLegacyTags(t *testing.T) {
	assert.Equal(t, "Physics,Optics", *LegacyTags(strPtr("Physics"), strPtr("Optics")))
	assert.Equal(t, "Physics", *LegacyTags(strPtr("Physics"), nil))
	assert.Equal(t, "Optics", *LegacyTags(strPtr(" "), strPtr("Optics")))
	assert.Nil(t, LegacyTags(nil, strPtr("")))
}

func TestMigrateCategoriesToTags(t *testing.T) {
	ctx := context.Background()
	db := storagetest.DB(t)
	seedLegacy(t, db)
	m := NewMigrator(db, zap.NewNop())

	res, err := m.MigrateCategoriesToTags(ctx)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.True(t, res.AddedTagsColumn)
	assert.True(t, res.Rebuilt)
	assert.Equal(t, 3, res.Converted)

	mig := db.Migrator()
	assert.False(t, mig.HasColumn("papers", "category"))
	assert.False(t, mig.HasColumn("papers", "subcategory"))
	assert.True(t, mig.HasColumn("papers", "tags"))
	assert.False(t, mig.HasTable(rebuildTable))

	tags := tagsByTitle(t, db)
	require.NotNil(t, tags["Lasers"])
	assert.Equal(t, "Physics,Optics", *tags["Lasers"])
	assert.Equal(t, "Biology", *tags["Genome"])
	assert.Nil(t, tags["Loose"])

	// Identität, Flag und Referenzen bleiben erhalten
	store := storage.NewPaperStore(db)
	lasers, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Lasers", lasers.Title)
	assert.True(t, lasers.Importance)
	assert.False(t, lasers.CreatedAt.IsZero())

	// neue Datensätze bekommen eine freie ID
	fresh := &models.Paper{Title: "New", Link: strPtr("https://n")}
	require.NoError(t, store.Insert(ctx, fresh))
	assert.Equal(t, uint(4), fresh.ID)

	var runs []models.MigrationRun
	require.NoError(t, db.Where("name = ?", RunCategoryToTags).Find(&runs).Error)
	assert.Len(t, runs, 1)
}

func TestMigrateCategoriesToTagsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := storagetest.DB(t)
	seedLegacy(t, db)
	m := NewMigrator(db, zap.NewNop())

	_, err := m.MigrateCategoriesToTags(ctx)
	require.NoError(t, err)
	first := tagsByTitle(t, db)

	res, err := m.MigrateCategoriesToTags(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, first, tagsByTitle(t, db))
}

func TestMigrateSkipsWithoutLegacyColumns(t *testing.T) {
	db := storagetest.Migrated(t, &models.Paper{})
	called := false
	m := &Migrator{DB: db, Logger: zap.NewNop(), BeforeContract: func(context.Context) error {
		called = true
		return nil
	}}

	res, err := m.MigrateCategoriesToTags(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, called)
	assert.False(t, NeedsCategoryMigration(db))
}

func TestMigrateOriginalSchemaWithCreateAt(t *testing.T) {
	ctx := context.Background()
	db := storagetest.DB(t)
	require.NoError(t, db.Exec(`CREATE TABLE papers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		summary TEXT,
		link TEXT,
		pdf_path TEXT,
		category TEXT,
		subcategory TEXT,
		importance INTEGER DEFAULT 0,
		create_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO papers (title, link, category, subcategory, importance) VALUES ('A', 'https://a', 'ML', 'NLP', 1)`).Error)
	require.True(t, NeedsCategoryMigration(db))

	_, err := NewMigrator(db, zap.NewNop()).MigrateCategoriesToTags(ctx)
	require.NoError(t, err)

	p, err := storage.NewPaperStore(db).GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p.Tags)
	assert.Equal(t, "ML,NLP", *p.Tags)
	assert.True(t, p.Importance)
	assert.False(t, p.CreatedAt.IsZero(), "create_at is carried over into created_at")
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := storagetest.DB(t)
	// title ohne NOT NULL, damit das Kopieren in das neue Schema scheitert
	require.NoError(t, db.Exec(`CREATE TABLE papers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT,
		link TEXT,
		category TEXT,
		subcategory TEXT
	)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO papers (title, link, category) VALUES (NULL, 'https://a', 'ML')`).Error)

	_, err := NewMigrator(db, zap.NewNop()).MigrateCategoriesToTags(ctx)
	require.Error(t, err)

	mig := db.Migrator()
	assert.True(t, mig.HasColumn("papers", "category"), "legacy columns survive a failed rebuild")
	assert.False(t, mig.HasTable(rebuildTable))

	var category string
	require.NoError(t, db.Raw("SELECT category FROM papers WHERE id = 1").Row().Scan(&category))
	assert.Equal(t, "ML", category)

	var tags *string
	require.NoError(t, db.Raw("SELECT tags FROM papers WHERE id = 1").Row().Scan(&tags))
	assert.Nil(t, tags, "transform is rolled back together with the rebuild")
}

func TestMigrateBeforeContractError(t *testing.T) {
	db := storagetest.DB(t)
	seedLegacy(t, db)
	boom := errors.New("backup failed")
	m := &Migrator{DB: db, Logger: zap.NewNop(), BeforeContract: func(context.Context) error { return boom }}

	_, err := m.MigrateCategoriesToTags(context.Background())
	require.ErrorIs(t, err, boom)
	assert.False(t, db.Migrator().HasColumn("papers", "tags"))
}

func TestCanonicalizeTags(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Migrated(t, &models.Paper{})
	rows := []models.Paper{
		{Title: "legacy", Link: strPtr("x"), Tags: strPtr("ml, nlp ,, cv")},
		{Title: "canonical", Link: strPtr("x"), Tags: strPtr(`["a","b"]`)},
		{Title: "none", Link: strPtr("x")},
		{Title: "separators", Link: strPtr("x"), Tags: strPtr(" , ")},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
	m := NewMigrator(db, zap.NewNop())

	res, err := m.CanonicalizeTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 2, res.Converted)
	assert.Equal(t, 1, res.AlreadyCanonical)

	tags := tagsByTitle(t, db)
	require.NotNil(t, tags["legacy"])
	assert.Equal(t, `["ml","nlp","cv"]`, *tags["legacy"])
	assert.Equal(t, `["a","b"]`, *tags["canonical"])
	assert.Nil(t, tags["none"])
	assert.Nil(t, tags["separators"])

	// zweiter Lauf ändert nichts mehr
	again, err := m.CanonicalizeTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Converted)
	assert.Equal(t, 2, again.AlreadyCanonical)
	assert.Equal(t, tags, tagsByTitle(t, db))

	for title, raw := range tags {
		if raw != nil {
			assert.True(t, services.IsCanonicalTags(*raw), title)
		}
	}
}

func TestCanonicalizeAfterCategoryMigration(t *testing.T) {
	ctx := context.Background()
	db := storagetest.DB(t)
	seedLegacy(t, db)
	m := NewMigrator(db, zap.NewNop())

	_, err := m.MigrateCategoriesToTags(ctx)
	require.NoError(t, err)
	_, err = m.CanonicalizeTags(ctx)
	require.NoError(t, err)

	p, err := storage.NewPaperStore(db).GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Physics", "Optics"}, services.DecodeTags(p.Tags))
	assert.Equal(t, `["Physics","Optics"]`, *p.Tags)
}

func TestCanonicalizeSkipsLegacySchema(t *testing.T) {
	db := storagetest.Migrated(t, &models.LegacyPaper{})
	res, err := NewMigrator(db, zap.NewNop()).CanonicalizeTags(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}
