// Package auth implements accounts, sessions and ownership checks.
//
// Credentials registers and authenticates users. Passwords are stored as
// Argon2id PHC strings with a per-password salt.
//
// Issuer mints opaque bearer tokens. Only a keyed digest of a token is
// persisted, and resolving a token is an exact match on that digest. A token
// that was never issued, was revoked, or has expired resolves to the same
// InvalidToken failure.
//
// Guard is the single entry point used by protected operations: it turns a
// token into a user and checks that the user holds the required relation to
// a resource before anything is mutated.
package auth
