package models

// All lists every persisted model in dependency order for schema migration.
func All() []any {
	return []any{
		&Role{},
		&User{},
		&ThesisTitle{},
		&ThesisTitlePanel{},
		&Thesis{},
		&PlagiarismScan{},
		&DirectorySyncRun{},
	}
}
