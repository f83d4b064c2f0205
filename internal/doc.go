// Package internal contains helper utilities that are intentionally private to authrbac,
// including secure random generation for opaque token material.
//
// # Sub-packages
//
//   - rate — Redis-backed login and forgot-password throttles
//
// # What this package must NOT do
//
//   - Export types that appear in the public authrbac API.
//   - Be imported by any package outside the authrbac module.
package internal
