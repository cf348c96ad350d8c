// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── audit/           # Conversion audit trail
//	└── jobs/            # Queued conversion jobs and their outputs
//
// The catalog snapshot table is owned by the catalogcache package.
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.NewDatabase("./mimeroute.db", logger)
//
//	auditRepo := audit.NewRepository(db.DB)
//	jobsRepo := jobs.NewRepository(db.DB)
//
//	job, err := jobsRepo.Get(id)
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Register its entities in Migrate
//  5. Add compile-time interface check: var _ SomeInterface = (*Repository)(nil)
package database
