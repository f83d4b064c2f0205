// Package authrbac provides the authentication and role-based access
// control engine for the task management platform: argon2id credential
// storage with append-only history, JWE access/refresh tokens, single-use
// reset and verification tokens, and role-derived permission checks with
// a TTL cache.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authrbac is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (LoginResult, IdentitySnapshot, Principal,
// etc.). Token sealing lives in the token package, credential hashing in
// password, permission resolution in permission, single-use tokens in
// ledger, and persistence behind the IdentityStore and TokenStore
// interfaces implemented under stores/.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or token encoding details in
//     its public API.
//   - Persist raw token material; refresh and single-use tokens are
//     stored as SHA-256 hashes only.
//   - Import any sub-package that re-imports authrbac (no import cycles).
//
// # Performance contract
//
// Authenticate and CheckPermission are the hot path. Token verification
// is pure CPU, and a warm permission cache answers CheckPermission
// without touching the role store. Login, Refresh, and the password
// flows are allowed storage round-trips.
package authrbac
