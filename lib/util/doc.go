// Package util provides small concurrency helpers shared by the dNet building blocks.
//
// The package contains:
//   - COWList: a copy-on-write list whose snapshots stay valid while the list is mutated
//     concurrently. It backs the listener lists of the event dispatchers and the stage
//     sequences of the transform pipeline.
//   - SameIdentity: identity comparison for values stored behind interfaces. It never
//     panics; function values have no identity and must be wrapped in a pointer.
package util
