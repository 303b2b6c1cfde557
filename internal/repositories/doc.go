// Package repositories implements SQLite persistence for local client state.
//
// Key Implementations:
//   - [SessionRepository] : the single persisted login, shared by every CLI invocation
//   - [PlanRepository] : saved stop lists with their ordered plan_stops rows
//   - [RunRepository] : optimization history, also used as the session's run recorder
//
// Plans and runs are soft deleted via deleted_at and excluded from queries by default.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
