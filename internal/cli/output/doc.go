// Package output renders command results for finance-cli.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: key/value and list tables via text/tabwriter
//   - json.go, yaml.go: machine-readable output
//   - spinner.go: progress animation while waiting on the auth service
//
// Results go to stdout; spinners and diagnostics go to stderr so that
// json and yaml output stays pipeable.
package output
