// Package fusion runs a fusion job through every pipeline stage.
//
// Stage order is fixed:
//
//  1. Source adapters, one task per unit, in parallel.
//  2. Barrier: every adapter task has finished.
//  3. Stop when any fragment failed to adapt.
//  4. Unification, single-threaded.
//  5. Stop on unification errors.
//  6. Ownership check.
//  7. Optimizer passes, sequential.
//  8. Ownership check.
//  9. Emission, one task per target, in parallel and read-only, through
//     the artifact cache when one is configured.
//  10. The run is recorded in the run history.
//
// Cancellation is checked between stages (and inside the parallel ones). A
// cancelled job returns ctx.Err(); emitters never see a partial tree.
package fusion
