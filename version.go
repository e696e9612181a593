package switchboard

import _ "embed"

// Version is the release version, sourced from the VERSION file at the
// repository root. Consumers should strings.TrimSpace it before display.
//
//go:embed VERSION
var Version string
