// Package rate provides internal primitives used to build Redis-backed rate limit keys,
// errors, and limiter behavior for security-sensitive authentication workflows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  — login per-identifier
//   - ali: — login per-IP
//   - af:  — forgot-password per-contact
//
// # What this package must NOT do
//
//   - Decide which identifiers get limited (the Engine does).
//   - Be imported outside the authrbac module.
package rate
