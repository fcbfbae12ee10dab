package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"ethesis-api/config"
	"ethesis-api/models"
	"ethesis-api/utils"

	"gorm.io/gorm"
)

const (
	DefaultDirectoryPerPage = 100
	MaxDirectoryPerPage     = 100

	// runs left "running" longer than this are treated as crashed
	staleDirectorySyncAfter = time.Hour
)

var ErrDirectorySyncAlreadyRunning = errors.New("directory sync already running")

// DirectoryLister is the part of the directory the sync job needs.
type DirectoryLister interface {
	ListUsers(ctx context.Context, perPage, page int) (*DirectoryPage, error)
}

type DirectorySyncInput struct {
	PerPage       int
	Page          int // > 0 processes exactly this page
	DryRun        bool
	TriggerSource string
	RecordRun     bool
	// Progress receives human-readable progress lines; nil discards them.
	Progress func(format string, args ...any)
}

type DirectorySyncSummary struct {
	PagesFetched int  `json:"pages_fetched"`
	Processed    int  `json:"processed"`
	Created      int  `json:"created"`
	Updated      int  `json:"updated"`
	Skipped      int  `json:"skipped"`
	DryRun       bool `json:"dry_run"`
}

// Report is the final summary line printed by the CLI.
func (s *DirectorySyncSummary) Report() string {
	prefix := ""
	if s.DryRun {
		prefix = "[DRY RUN] "
	}
	return fmt.Sprintf("%sProcessed: %d, Created: %d, Updated: %d, Skipped: %d",
		prefix, s.Processed, s.Created, s.Updated, s.Skipped)
}

type DirectorySyncService struct {
	db        *gorm.DB
	directory DirectoryLister
	runSvc    *DirectorySyncRunService
}

func NewDirectorySyncService(db *gorm.DB, directory DirectoryLister) *DirectorySyncService {
	if db == nil {
		db = config.DB
	}
	if directory == nil {
		directory = NewDirectoryClient(config.Directory(), nil)
	}
	return &DirectorySyncService{
		db:        db,
		directory: directory,
		runSvc:    NewDirectorySyncRunService(db),
	}
}

// ClampPerPage maps 0 to the default and everything else into [1, MaxDirectoryPerPage].
func ClampPerPage(perPage int) int {
	switch {
	case perPage == 0:
		return DefaultDirectoryPerPage
	case perPage < 1:
		return 1
	case perPage > MaxDirectoryPerPage:
		return MaxDirectoryPerPage
	}
	return perPage
}

// Run walks the directory page by page and reconciles local users and roles.
// Any directory or store failure aborts the run; users already handled stay committed.
// Cancelling ctx does not stop a run that has started.
func (s *DirectorySyncService) Run(ctx context.Context, input *DirectorySyncInput) (*DirectorySyncSummary, *models.DirectorySyncRun, error) {
	if input == nil {
		return nil, nil, errors.New("input is nil")
	}
	ctx = persistentContext(ctx)
	progress := input.Progress
	if progress == nil {
		progress = func(string, ...any) {}
	}
	perPage := ClampPerPage(input.PerPage)
	summary := &DirectorySyncSummary{DryRun: input.DryRun}

	var run *models.DirectorySyncRun
	if input.RecordRun && !input.DryRun {
		running, err := s.runSvc.GetRunning(ctx)
		if err != nil {
			return nil, nil, err
		}
		if running != nil && time.Since(running.StartedAt) < staleDirectorySyncAfter {
			return nil, running, ErrDirectorySyncAlreadyRunning
		}

		trigger := strings.TrimSpace(input.TriggerSource)
		if trigger == "" {
			trigger = "cli"
		}
		var pagePtr *int
		if input.Page > 0 {
			page := input.Page
			pagePtr = &page
		}
		run, err = s.runSvc.Start(ctx, trigger, perPage, pagePtr)
		if err != nil {
			return nil, nil, err
		}
	}

	startTime := time.Now()
	if run != nil {
		startTime = run.StartedAt
	}

	finalErr := s.walk(ctx, input, perPage, summary, progress)

	if run != nil {
		duration := time.Since(startTime).Seconds()
		var markErr error
		if finalErr != nil {
			markErr = s.runSvc.MarkFailure(ctx, run.ID, summary, finalErr, duration)
		} else {
			markErr = s.runSvc.MarkSuccess(ctx, run.ID, summary, duration)
		}
		if markErr != nil {
			log.Printf("failed to mark directory sync run status: %v", markErr)
		}
		if updated, err := s.runSvc.GetByID(ctx, run.ID); err == nil {
			run = updated
		}
	}

	return summary, run, finalErr
}

func (s *DirectorySyncService) walk(ctx context.Context, input *DirectorySyncInput, perPage int, summary *DirectorySyncSummary, progress func(string, ...any)) error {
	page := 1
	if input.Page > 0 {
		page = input.Page
	}

	for {
		progress("Fetching page %d (per_page=%d)...", page, perPage)
		result, err := s.directory.ListUsers(ctx, perPage, page)
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", page, err)
		}
		summary.PagesFetched++

		if len(result.Users) == 0 {
			progress("Page %d returned no users.", page)
			break
		}

		for _, record := range result.Users {
			if err := s.syncUser(ctx, record, input.DryRun, summary); err != nil {
				return err
			}
		}
		progress("Page %d done: %d users.", page, len(result.Users))

		if input.Page > 0 {
			break
		}
		current := derefOr(result.CurrentPage, page)
		last := derefOr(result.LastPage, current)
		if current >= last {
			break
		}
		page++
	}
	return nil
}

func (s *DirectorySyncService) syncUser(ctx context.Context, record DirectoryUser, dryRun bool, summary *DirectorySyncSummary) error {
	summary.Processed++

	email := utils.NormalizeEmail(record.Email)
	if email == "" {
		summary.Skipped++
		return nil
	}

	if dryRun {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return fmt.Errorf("look up %s: %w", email, err)
		}
		if count == 0 {
			summary.Created++
		} else {
			summary.Updated++
		}
		return nil
	}

	_, created, err := upsertDirectoryUser(ctx, s.db, record, userUpsertOptions{})
	if err != nil {
		return fmt.Errorf("sync user %s: %w", email, err)
	}
	if created {
		summary.Created++
	} else {
		summary.Updated++
	}
	return nil
}

func derefOr(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}
