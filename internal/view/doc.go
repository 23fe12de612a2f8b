// Package view maintains materialised aggregate views over stored objects.
//
// A view groups the objects of one schema that satisfy a where clause and
// computes aggregate columns per group:
//
//	view: OrderStats: {
//		schema: "Order"
//		where:  "status != \"void\""
//		group: ["status"]
//		aggregates: {
//			orders:  "count()"
//			revenue: "sum(total)"
//			average: "sum(total) / count()"
//		}
//	}
//
// The Maintainer consumes store changes. When every aggregate of a view is
// decomposable, a change is applied by removing the old row from its group
// and appending the new one. Otherwise the affected group is recomputed
// from the store. Each group records the id and version of its members, so
// a change already reflected by a recomputation is not applied twice.
//
// Changes are processed by a single goroutine (Run) reading a FIFO queue;
// Apply can also be called directly for synchronous maintenance.
package view
