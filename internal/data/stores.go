package data

import (
	"database/sql"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
)

// NewPostgresStores wires every domain repository against db.
func NewPostgresStores(db *sql.DB, cfg RepoConfig) core.Stores {
	return core.Stores{
		Accounts:  NewAccountRepo(db, cfg),
		Posts:     NewPostRepo(db, cfg),
		Followers: NewFollowerRepo(db, cfg),
		Metrics:   NewMetricsRepo(db, cfg),
		Logs:      NewCollectionLogRepo(db, cfg),
	}
}
