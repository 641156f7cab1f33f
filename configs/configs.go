// Package configs embeds the default rule document shipped with the service.
package configs

import _ "embed"

// DefaultRules is the bundled onboarding rule document.
//
//go:embed rules.yaml
var DefaultRules []byte
