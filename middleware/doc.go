// Package middleware exposes HTTP middleware adapters for access token
// authentication and permission enforcement built on top of
// authrbac.Engine.
//
// # Guards
//
//   - [Authenticate] — resolves the caller from the accessToken cookie
//     or the Authorization header and injects the Principal.
//   - [RequirePermissions] — rejects requests whose Principal lacks the
//     required permissions under the given logic.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication or authorization logic itself — all decisions
// are delegated to Engine.Authenticate and the Principal's permission
// set.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Touch stores or Redis (Engine handles I/O).
//   - Make authorization decisions beyond what the Principal carries.
package middleware
