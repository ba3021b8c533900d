// Package appfs embeds static assets (DB migrations, email templates)
// into the binaries so they run from any working directory.
package appfs

import "embed"

//go:embed migrations assets/templates/email assets/common-passwords.txt.gz
var FS embed.FS
