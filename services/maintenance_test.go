package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"ethesis-api/models"
	"ethesis-api/utils"
)

func TestAuditStorageReportsMissingDocuments(t *testing.T) {
	db := newTestDB(t)
	storage := &LocalStorage{Root: t.TempDir()}
	owner := createUser(t, db, "Owner", "owner@example.edu", models.RoleStudent)
	adviser := createUser(t, db, "Adviser", "adviser@example.edu", models.RoleTeacher)
	title := createTitle(t, db, owner, adviser, "Audited")
	other := createTitle(t, db, owner, adviser, "Ignored")

	kept, err := storage.Put(ChapterFolder(owner.ID, title.ID), pdfHeader(t, "kept.pdf", []byte("%PDF-1.4")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	db.Create(&models.Thesis{ThesisTitleID: title.ID, Chapter: "Chapter 1", DocumentPath: kept, Status: models.ThesisStatusPending})
	lost := createChapter(t, db, title, "Chapter 2", models.ThesisStatusPending, time.Now())
	db.Model(title).Update("abstract_path", "users/1/titles/1/abstract.pdf")
	createChapter(t, db, other, "Chapter 1", models.ThesisStatusPending, time.Now())

	svc := NewMaintenanceService(db, storage)
	report, err := svc.AuditStorage(context.Background(), []uint{title.ID}, true)
	if err != nil {
		t.Fatalf("AuditStorage: %v", err)
	}
	if report.Titles != 1 || report.Documents != 3 {
		t.Fatalf("unexpected totals %+v", report)
	}
	if len(report.Missing) != 2 {
		t.Fatalf("expected 2 missing documents, got %+v", report.Missing)
	}
	if report.Missing[0].Kind != "abstract" || report.Missing[1].Kind != "chapter" || *report.Missing[1].ThesisID != lost.ID {
		t.Fatalf("unexpected missing entries %+v", report.Missing)
	}
	if report.FoldersCreated != 0 {
		t.Fatalf("expected existing folders to be left alone, created %d", report.FoldersCreated)
	}

	report, err = svc.AuditStorage(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("AuditStorage all: %v", err)
	}
	if report.Titles != 2 || len(report.Missing) != 3 || report.FoldersCreated != 2 {
		t.Fatalf("unexpected full audit %+v", report)
	}
	if !strings.Contains(report.Report(), "missing=3") {
		t.Fatalf("unexpected report line %q", report.Report())
	}
}

func TestRotateCredentials(t *testing.T) {
	db := newTestDB(t)
	hashed, _ := utils.HashPassword("secret")
	legacy := createUser(t, db, "Legacy", "legacy@example.edu")
	current := createUser(t, db, "Current", "current@example.edu")
	db.Model(current).Update("password", hashed)

	svc := NewMaintenanceService(db, &LocalStorage{Root: t.TempDir()})
	report, err := svc.RotateCredentials(context.Background(), false)
	if err != nil {
		t.Fatalf("RotateCredentials: %v", err)
	}
	if report.Rotated != 1 || report.Skipped != 1 || len(report.Failed) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	var reloaded models.User
	db.First(&reloaded, legacy.ID)
	if !strings.HasPrefix(reloaded.Password, "$2") || utils.CheckPasswordHash("x", reloaded.Password) {
		t.Fatalf("legacy password was not replaced by a throwaway hash")
	}
	var kept models.User
	db.First(&kept, current.ID)
	if kept.Password != hashed {
		t.Fatalf("existing hash should be kept without --all")
	}

	report, err = svc.RotateCredentials(context.Background(), true)
	if err != nil || report.Rotated != 2 {
		t.Fatalf("expected every user rotated, got %+v, %v", report, err)
	}
}
