// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DatasetStore: Read and dataset persistence
//   - JobStore: Training-job state persistence
//   - BundleStore: Model-bundle publication and loading
//   - Embedder: Versioned sequence encoder
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ResultCache: Prediction memoization. Without it, every request is
//     computed fresh; cache unavailability is never a correctness failure.
//   - ReferenceLookup: External reference-database fallback. Without it,
//     low-confidence predictions are returned unrouted with the fallback
//     flag set.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or pipeline package
package driven
