// Package confloader provides configuration loading mechanism.
//
// This package implements a layered configuration loader on top of koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap after Load)
//  2. Environment variables (CLI_ prefix, CLI_AUTH_URL -> auth.url)
//  3. Configuration file (YAML)
//  4. Default values (WithDefaults)
package confloader
