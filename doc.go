// Package auth provides the identity and moderation layer of cinemalog:
// credential storage, JWT issuance, per request session resolution, role
// tiers, bans, and the admin console.
//
// Sessions:
//   - TokenService issues HS256 tokens that carry only the account id and a
//     role snapshot. The snapshot is informational; SessionResolver re-reads
//     the account on every request so role changes and bans apply to
//     outstanding tokens without revoking them.
//   - A banned or deleted account resolves as anonymous. The one exception is
//     the /me endpoint, which still returns the banned account so clients can
//     show the ban before logging out.
//
// Roles:
//   - Roles are ordered free < pro < patron < lifetime < admin < higher_admin
//     < owner. Only higher_admin and owner form the admin tier; plain admin
//     is a staff label without console access.
//   - The owner role is never assigned through promotion. It is granted once,
//     at registration, to the account whose email matches the configured
//     owner email.
//
// Bans:
//   - BanManager writes the whole ban state (flag, reason, expiry, actor)
//     at once. An expiry is recorded but not enforced; nothing lifts a ban
//     except an explicit unban.
//
// Admin console:
//   - CommandInterpreter parses /stats, /promote, /demote, /ban, /unban and
//     /broadcast and routes them to AdminService. Command names are case
//     insensitive, usernames are not.
//
// Activity sinks:
//   - ActivitySink receives login, registration, role and ban events. Sinks
//     run best-effort (errors are logged) so a slow audit backend never
//     blocks authentication or moderation.
package auth
