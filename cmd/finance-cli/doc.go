// Package main provides the entry point for finance-cli.
//
// finance-cli authenticates against the Finance Planner auth service and
// caches the issued tokens per user in ~/.config/finance-cli/tokens.json.
//
// Usage:
//
//	finance-cli auth login --email me@example.com
//	finance-cli auth status -o json
//	finance-cli tenant switch 42
//	finance-cli auth token
package main
