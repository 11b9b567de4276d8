package store

import "github.com/sakya-app/sakya/internal/logger"

// Repositories bundles every repository the server needs: the identity
// repositories share one database, the sync repositories another.
type Repositories struct {
	AccountRepository   AccountRepository
	DeviceRepository    DeviceRepository
	MagicLinkRepository MagicLinkRepository
	UpdateRepository    UpdateRepository
	SnapshotRepository  SnapshotRepository
}

// NewRepositories wires all repositories onto their backing stores.
func NewRepositories(identityDB, syncDB *DB, log *logger.Logger) *Repositories {
	return &Repositories{
		AccountRepository:   NewAccountRepository(identityDB, log),
		DeviceRepository:    NewDeviceRepository(identityDB, log),
		MagicLinkRepository: NewMagicLinkRepository(identityDB, log),
		UpdateRepository:    NewUpdateRepository(syncDB, log),
		SnapshotRepository:  NewSnapshotRepository(syncDB, log),
	}
}
