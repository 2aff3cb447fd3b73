// Package token reads claims out of JWT access tokens.
//
// Tokens are issued and signed by the auth service; this package never
// verifies signatures. It only inspects the payload to answer two local
// questions:
//
//   - When does the token expire? (exp claim)
//   - Which tenant was it minted for? (tenant_id claim)
//
// Failure policy:
//
//   - Expiry checks fail closed: an unparseable token counts as expired.
//   - Tenant extraction fails open: an unparseable token yields no tenant.
package token
