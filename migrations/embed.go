package migrations

import "embed"

//go:embed sqlite/identity/*.sql sqlite/sync/*.sql postgres/identity/*.sql postgres/sync/*.sql
var embedMigrations embed.FS
