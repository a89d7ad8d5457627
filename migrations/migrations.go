// Package migrations embeds the SQL schema for the local tracker database and
// the remote store database.
package migrations

import "embed"

// Set names one migration directory.
type Set string

const (
	// Local is the schema of the tracker's own database.
	Local Set = "local"
	// Store is the schema of the remote store server.
	Store Set = "store"
)

//go:embed local/*.sql store/*.sql
var FS embed.FS
