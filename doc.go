// Package enroll provides the building blocks for a self-service enrollment
// gateway: administrators hand out time- and use-bounded provision links, and
// holders of a link can bootstrap an account in an external identity
// directory without ever seeing directory credentials.
//
// Provision links:
//   - ProvisionLink rows are persisted via Bun. Redemption is a single
//     conditional update, so a link with max_uses = N can never be redeemed
//     more than N times no matter how many callers race on it.
//   - Link identifiers travel out of band as HMAC-signed tokens, so a copy of
//     the database alone is not enough to forge a redeemable URL.
//
// Sessions:
//   - Session tokens are self-contained signed credentials (JWT HS256) minted
//     after the directory authenticates a user. Validation needs no
//     server-side lookup; authorization (admin-group membership) is
//     re-derived from the directory on every request so membership changes
//     take effect immediately.
//
// Secrets:
//   - SecretStore derives the session, link, and at-rest encryption keys from
//     two operator-supplied secrets at startup and fails fast when material
//     is missing. Secret bytes never surface in logs or error messages.
package enroll
