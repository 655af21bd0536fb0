package main

import (
	"github.com/openctemio/toolstudio/internal/infra/postgres"
)

// Repositories holds the PostgreSQL repositories.
type Repositories struct {
	Tool      *postgres.ToolRepository
	Version   *postgres.VersionRepository
	Tag       *postgres.TagRepository
	Execution *postgres.ExecutionRepository
	Catalog   *postgres.CatalogRepository
}

// NewRepositories creates all repositories on db.
func NewRepositories(db *postgres.DB) *Repositories {
	return &Repositories{
		Tool:      postgres.NewToolRepository(db),
		Version:   postgres.NewVersionRepository(db),
		Tag:       postgres.NewTagRepository(db),
		Execution: postgres.NewExecutionRepository(db),
		Catalog:   postgres.NewCatalogRepository(db),
	}
}
