// Package config provides CLI configuration for finance-cli.
//
// Values come from, in increasing priority: built-in defaults, the YAML
// file at ~/.config/finance-cli/config.yaml (or --config), CLI_* environment
// variables and command-line flags.
//
//	auth:
//	  url: http://127.0.0.1:8001   # CLI_AUTH_URL
//	  timeout: 30s                 # CLI_AUTH_TIMEOUT
//	session:
//	  path: ~/.config/finance-cli/tokens.json   # CLI_SESSION_PATH
//	output:
//	  format: table                # CLI_OUTPUT_FORMAT
//	log:
//	  level: warn                  # CLI_LOG_LEVEL
//	  format: text                 # CLI_LOG_FORMAT
//	tls:
//	  ca: ""                       # CLI_TLS_CA
//	login:
//	  email: ""                    # CLI_LOGIN_EMAIL
package config
