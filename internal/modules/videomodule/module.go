// Package videomodule exposes the catalog query surface: filtered listing,
// aggregate statistics, and record/session management.
package videomodule

import (
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/hashicorp/go-hclog"
)

// Module serves catalog queries.
type Module struct {
	store  *database.Store
	logger hclog.Logger
}

// New constructs the video module.
func New(store *database.Store, logger hclog.Logger) *Module {
	return &Module{store: store, logger: logger}
}
