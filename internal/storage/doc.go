// Package storage persists the finance-cli session document.
//
// The session lives in one JSON file (by default
// ~/.config/finance-cli/tokens.json):
//
//	{
//	  "current_user": "alice@example.com",
//	  "current_tenant_id": 7,
//	  "tokens": {
//	    "alice@example.com": {
//	      "access_token": "eyJ...",
//	      "refresh_token": "eyJ...",
//	      "expires_at": "2026-01-01T12:00:00Z",
//	      "tenant_id": 7
//	    }
//	  },
//	  "tenant_preferences": {"alice@example.com": 7}
//	}
//
// Durability:
//
//   - The parent directory is created with mode 0700.
//   - Each save writes a sibling temp file, sets mode 0600, fsyncs it and
//     renames it over the target, so readers never observe a torn file.
//   - Undecodable content loads as an empty document.
package storage
