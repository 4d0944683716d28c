// Package auth issues and verifies revocable access tokens.
//
// Sessions:
//   - Tokens are HMAC signed JWTs carrying a fixed claim set (SessionClaims).
//     Every token embeds a random jti and the token version the user had at
//     mint time.
//   - SessionRegistry keeps two kinds of keys in Redis: a per user version
//     counter and a per token denylist entry. Bumping the counter invalidates
//     every token the user holds, a denylist entry invalidates a single one.
//     Denylist entries expire together with the token they deny.
//   - A flushed cache resets every version to zero and forgets every denial.
//     Tokens that were revoked before the flush become valid again until they
//     expire, which is why access tokens are kept short lived.
//
// Passwords:
//   - PasswordHasher writes argon2id digests in PHC format and still accepts
//     legacy bcrypt digests. Verify hands back a replacement digest whenever
//     the stored one uses outdated parameters so callers can re-persist it.
package auth
