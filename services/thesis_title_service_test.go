package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"ethesis-api/models"
)

func TestCreateTitleRequiresTeacherAdviser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewThesisTitleService(db, &LocalStorage{Root: t.TempDir()})

	owner := createUser(t, db, "Owner", "owner@example.edu", models.RoleStudent)
	notTeacher := createUser(t, db, "Peer", "peer@example.edu", models.RoleStudent)

	_, err := svc.Create(ctx, owner, ThesisTitleInput{Title: ptr("Compilers"), AdviserID: &notTeacher.ID})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Fields["adviser_id"] != "The selected adviser must be a teacher." {
		t.Fatalf("unexpected adviser message: %v", verr.Fields)
	}

	var count int64
	db.Model(&models.ThesisTitle{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no title rows, got %d", count)
	}
}

func TestCreateTitleWithMembersAndAbstract(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	storage := &LocalStorage{Root: t.TempDir()}
	svc := NewThesisTitleService(db, storage)

	owner := createUser(t, db, "Owner", "owner@example.edu", models.RoleStudent)
	owner.Profile = []byte(`{"college_name": "Computing"}`)
	member := createUser(t, db, "Member", "member@example.edu", models.RoleStudent)
	adviser := createUser(t, db, "Adviser", "adviser@example.edu", models.RoleTeacher)

	proposal := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	title, err := svc.Create(ctx, owner, ThesisTitleInput{
		Title:             ptr("  Distributed <b>caches</b> "),
		AdviserID:         &adviser.ID,
		MemberIDs:         []uint{member.ID, member.ID},
		ProposalDefenseAt: &proposal,
		Abstract:          pdfHeader(t, "abstract.pdf", []byte("%PDF abstract")),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if title.Adviser == nil || title.Adviser.ID != adviser.ID {
		t.Fatalf("expected adviser to be loaded")
	}
	if len(title.Members) != 1 || title.Members[0].ID != member.ID {
		t.Fatalf("expected one member, got %+v", title.Members)
	}
	if title.CollegeName == nil || *title.CollegeName != "Computing" {
		t.Fatalf("expected college from owner profile, got %v", title.CollegeName)
	}
	if title.AbstractPath == nil || !storage.Exists(*title.AbstractPath) {
		t.Fatalf("expected stored abstract, got %v", title.AbstractPath)
	}
	if title.Title == "  Distributed <b>caches</b> " {
		t.Fatalf("expected title to be sanitized")
	}
}

func TestCreateTitleRejectsOwnerAsMember(t *testing.T) {
	db := newTestDB(t)
	svc := NewThesisTitleService(db, nil)
	owner := createUser(t, db, "Owner", "owner@example.edu", models.RoleStudent)
	adviser := createUser(t, db, "Adviser", "adviser@example.edu", models.RoleTeacher)

	_, err := svc.Create(context.Background(), owner, ThesisTitleInput{
		Title:     ptr("Self membership"),
		AdviserID: &adviser.ID,
		MemberIDs: []uint{owner.ID},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["member_ids"] == "" {
		t.Fatalf("expected member_ids error, got %v", err)
	}
}

func TestDeleteTitleRemovesFilesAndRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	storage := &LocalStorage{Root: t.TempDir()}
	titles := NewThesisTitleService(db, storage)
	chapters := NewThesisService(db, storage, nil)

	owner := createUser(t, db, "Owner", "owner@example.edu", models.RoleStudent)
	member := createUser(t, db, "Member", "member@example.edu", models.RoleStudent)
	adviser := createUser(t, db, "Adviser", "adviser@example.edu", models.RoleTeacher)

	title, err := titles.Create(ctx, owner, ThesisTitleInput{
		Title:       ptr("Short lived"),
		AdviserID:   &adviser.ID,
		MemberIDs:   []uint{member.ID},
		Endorsement: pdfHeader(t, "endorse.pdf", []byte("%PDF e")),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	chapter, err := chapters.Create(ctx, title, ChapterInput{Chapter: ptr("Chapter 1"), File: pdfHeader(t, "c1.pdf", []byte("%PDF c1"))})
	if err != nil {
		t.Fatalf("create chapter: %v", err)
	}
	if err := db.Create(&models.PlagiarismScan{ThesisID: chapter.ID, Status: models.ScanStatusPending}).Error; err != nil {
		t.Fatalf("create scan: %v", err)
	}
	if _, err := titles.AssignPanel(ctx, title, PanelInput{ChairmanID: &adviser.ID}); err != nil {
		t.Fatalf("AssignPanel: %v", err)
	}

	if err := titles.Delete(ctx, title); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if storage.Exists(*title.EndorsementPath) || storage.Exists(chapter.DocumentPath) {
		t.Fatalf("expected stored files to be removed")
	}
	for name, model := range map[string]any{
		"titles":   &models.ThesisTitle{},
		"chapters": &models.Thesis{},
		"scans":    &models.PlagiarismScan{},
		"panels":   &models.ThesisTitlePanel{},
	} {
		var count int64
		db.Model(model).Count(&count)
		if count != 0 {
			t.Fatalf("expected no %s left, got %d", name, count)
		}
	}
	var links int64
	db.Table("thesis_title_members").Count(&links)
	if links != 0 {
		t.Fatalf("expected member links removed, got %d", links)
	}
}

func TestAssignPanel(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewThesisTitleService(db, nil)

	owner := createUser(t, db, "Owner", "owner@example.edu", models.RoleStudent)
	adviser := createUser(t, db, "Adviser", "adviser@example.edu", models.RoleTeacher)
	chair := createUser(t, db, "Chair", "chair@example.edu", models.RoleTeacher)
	second := createUser(t, db, "Second", "second@example.edu", models.RoleTeacher)
	title := createTitle(t, db, owner, adviser, "Paneled")

	_, err := svc.AssignPanel(ctx, title, PanelInput{ChairmanID: &chair.ID, MemberOneID: &chair.ID})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["member_one_id"] == "" {
		t.Fatalf("expected duplicate seat error, got %v", err)
	}

	missing := uint(9999)
	if _, err := svc.AssignPanel(ctx, title, PanelInput{MemberTwoID: &missing}); !errors.As(err, &verr) {
		t.Fatalf("expected invalid member error, got %v", err)
	}

	if _, err := svc.AssignPanel(ctx, title, PanelInput{ChairmanID: &chair.ID}); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	updated, err := svc.AssignPanel(ctx, title, PanelInput{ChairmanID: &second.ID, MemberOneID: &chair.ID})
	if err != nil {
		t.Fatalf("second assign: %v", err)
	}
	if updated.Panel == nil || updated.Panel.Chairman == nil || updated.Panel.Chairman.ID != second.ID {
		t.Fatalf("expected chair replaced, got %+v", updated.Panel)
	}

	var panels int64
	db.Model(&models.ThesisTitlePanel{}).Count(&panels)
	if panels != 1 {
		t.Fatalf("expected a single panel row, got %d", panels)
	}
}

func TestListForUserGroupsTitles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewThesisTitleService(db, nil)

	student := createUser(t, db, "Student", "student@example.edu", models.RoleStudent, models.RoleTeacher)
	leader := createUser(t, db, "Leader", "leader@example.edu", models.RoleStudent)
	adviser := createUser(t, db, "Adviser", "adviser@example.edu", models.RoleTeacher)

	createTitle(t, db, student, adviser, "Owned")
	shared := createTitle(t, db, leader, adviser, "Shared")
	addMember(t, db, shared, student)
	createTitle(t, db, leader, student, "Advised")

	listing, err := svc.ListForUser(ctx, student)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(listing.Owned) != 1 || len(listing.Member) != 1 || len(listing.Advised) != 1 {
		t.Fatalf("unexpected grouping: owned=%d member=%d advised=%d", len(listing.Owned), len(listing.Member), len(listing.Advised))
	}

	advisers, err := svc.Advisers(ctx)
	if err != nil {
		t.Fatalf("Advisers: %v", err)
	}
	if len(advisers) != 2 {
		t.Fatalf("expected 2 teachers, got %d", len(advisers))
	}
}
