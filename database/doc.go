// Package database opens the SQLite file that backs the job ledger through
// GORM and manages it as a lifecycle component.
//
//	db := database.NewComponent(cfg, log).WithAutoMigrate(&jobs.Job{})
//	registry.Register(db)
//	...
//	store := jobs.NewStore(db.DB(), log)
package database
