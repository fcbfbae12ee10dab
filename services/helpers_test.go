package services

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"ethesis-api/config"
	"ethesis-api/models"

	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "ethesis_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func createUser(t *testing.T, db *gorm.DB, name, email string, roles ...string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: email, Password: "x"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	if len(roles) > 0 {
		stored, err := ensureRoles(db, roles)
		if err != nil {
			t.Fatalf("ensure roles: %v", err)
		}
		if err := db.Model(user).Association("Roles").Replace(stored); err != nil {
			t.Fatalf("attach roles: %v", err)
		}
	}
	return user
}

type titleOption func(*models.ThesisTitle)

func withCreatedAt(at time.Time) titleOption {
	return func(t *models.ThesisTitle) {
		t.CreatedAt = at
		t.UpdatedAt = at
	}
}

func withDefenses(proposal, final *time.Time) titleOption {
	return func(t *models.ThesisTitle) {
		t.ProposalDefenseAt = proposal
		t.FinalDefenseAt = final
	}
}

func createTitle(t *testing.T, db *gorm.DB, owner, adviser *models.User, name string, opts ...titleOption) *models.ThesisTitle {
	t.Helper()
	title := &models.ThesisTitle{UserID: owner.ID, AdviserID: adviser.ID, Title: name}
	for _, opt := range opts {
		opt(title)
	}
	if err := db.Create(title).Error; err != nil {
		t.Fatalf("create title %q: %v", name, err)
	}
	return title
}

func addMember(t *testing.T, db *gorm.DB, title *models.ThesisTitle, member *models.User) {
	t.Helper()
	if err := db.Model(title).Association("Members").Append(member); err != nil {
		t.Fatalf("add member: %v", err)
	}
}

func createChapter(t *testing.T, db *gorm.DB, title *models.ThesisTitle, label, status string, updatedAt time.Time) *models.Thesis {
	t.Helper()
	chapter := &models.Thesis{
		ThesisTitleID: title.ID,
		Chapter:       label,
		DocumentPath:  "users/1/titles/1/chapters/" + label + ".pdf",
		Status:        status,
		CreatedAt:     updatedAt.Add(-time.Hour),
		UpdatedAt:     updatedAt,
	}
	if err := db.Create(chapter).Error; err != nil {
		t.Fatalf("create chapter %q: %v", label, err)
	}
	return chapter
}

// pdfHeader builds an uploaded-file header the way a multipart request would produce it.
func pdfHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="document"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["document"][0]
}

func ptr[T any](v T) *T { return &v }
