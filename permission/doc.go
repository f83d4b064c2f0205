// Package permission implements RBAC permission resolution.
//
// Permissions are resource/action pairs. The action space is a closed
// enum internally; the colon string form ("users:read") appears only at
// the wire boundary (claims, HTTP, storage). Holding "resource:manage"
// satisfies any check on that resource; the widening is applied at
// check time so stored and cached sets stay literal.
//
// The [Aggregator] resolves an identity's active roles to a deduplicated
// permission set through a [RoleSource]. The [Cache] front-ends the
// aggregator with per-identity TTL entries and explicit invalidation.
//
// # Architecture boundaries
//
// This package is pure in-memory resolution logic with no I/O of its
// own. Persistence lives behind [RoleSource].
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network directly.
//   - Import any other authrbac package.
//   - Mutate a [Set] after construction; sets are value snapshots.
package permission
