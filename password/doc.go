// Package password implements credential hashing and the strength policy.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// # Architecture boundaries
//
// This package owns hashing, verification, and composition rules only.
// Credential history and reuse checks are enforced by the Engine against
// its persistence collaborator.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authrbac package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
