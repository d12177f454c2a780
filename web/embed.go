package web

import "embed"

// Templates embeds HTML templates used for PDF rendering.
//
//go:embed templates/**/*.html
var Templates embed.FS
