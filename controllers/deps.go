package controllers

import (
	"ethesis-api/services"
)

// ScanEnqueuer hands a stored scan to the background workers.
type ScanEnqueuer interface {
	Enqueue(scanID uint) error
}

// Dependencies are the services the handlers call. cmd/api builds them once at startup.
type Dependencies struct {
	Auth       *services.AuthService
	Guard      *services.AuthorizationService
	Dashboard  *services.DashboardService
	Titles     *services.ThesisTitleService
	Theses     *services.ThesisService
	Plagiarism *services.PlagiarismService
	Sync       *services.DirectorySyncService
	SyncRuns   *services.DirectorySyncRunService
	Storage    services.Storage
	Scans      ScanEnqueuer
}

var deps Dependencies

func Configure(d Dependencies) {
	deps = d
}
