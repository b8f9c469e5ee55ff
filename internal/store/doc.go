// Package store provides SQLite-backed durable storage for session
// checkpoints and event logs.
//
// The store is append-mostly:
//   - Sessions: lifecycle state, upserted on transitions
//   - Resources: one terminal checkpoint per (session, urn)
//   - Events: the session event log, keyed by logical sequence
//
// All ordering uses seq INTEGER (logical clock), never timestamps, so
// replays are deterministic regardless of wall time. Resource and
// event writes use ON CONFLICT DO NOTHING: re-running a prefix after a
// crash is a no-op, which is what makes idempotent registration
// survive restarts.
package store
