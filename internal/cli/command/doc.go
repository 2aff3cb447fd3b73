// Package command provides CLI command definitions for finance-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: application, global flags and the Before hook
//   - env.go: per-invocation environment (config, session cache, clients)
//   - auth.go: register, login, logout, whoami, switch, list, status, token, watch
//   - tenant.go: tenant current and tenant switch
//   - config.go: effective configuration
//   - version.go: build information
//
// Commands follow a consistent pattern of parsing flags, calling the
// session cache or the auth service, and formatting output. Failures are
// returned through fail, which adds user guidance and sets exit code 1.
package command
