// ABOUTME: Embeds the page templates into the binary using go:embed
// ABOUTME: Provides templateFS for parsing templates at startup

package webui

import "embed"

//go:embed templates/*.html templates/partials/*.html
var templateFS embed.FS
