// Package models defines domain entities and persistence interfaces for the fleet route planner.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs exchanged with the backend
//   - [Stop] : A geographic waypoint in the working route
//   - [Preferences] : Routing toggles sent with every optimize request
//   - [OptimizationResult] : Optimized route plus savings metrics
//   - [Vehicle] : Fleet vehicle from the inventory service
//   - [Identity] : The authenticated user
//   - [RouteEvent] : A message received over the push channel
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [PersistedPlan] : A named, saved stop list with vehicle and preferences
//   - [OptimizationRun] : History of submitted optimizations and their outcome
//   - [StoredSession] : The persisted login shared by separate CLI invocations
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
