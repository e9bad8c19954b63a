// Package runtime declares the fixed catalog of opaque runtime types
// and external runtime functions that emitted code calls into but this
// module never implements (spec §6, §10.4): hash tables, vectors,
// tuple-index tables, column scans, and the two skinner-join executor
// entry points.
package runtime
