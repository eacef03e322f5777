// Package core provides the foundational domain types and interfaces used by
// DebateMesh. It defines the core abstractions for:
//
//   - Debates (one orchestrated task execution across a role roster)
//   - Roles (named participants bound to backend sessions)
//   - Events (immutable, append-only lifecycle records)
//   - Interventions (externally submitted feedback/stop commands)
//   - Pluggable stores for debate memory, session handles and interventions
//   - The budget tracker shared by concurrently executing turns
//
// The package intentionally keeps implementation concerns (persistence,
// scheduling, backend clients) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
