// Package embedded provides embedded static assets for the application.
package embedded

import (
	"embed"
)

// Files contains the dashboard UI (static/) served directly via HTTP.
//
//go:embed static
var Files embed.FS
