// Package opt is the optimizing backend: it renders a Program as
// position-independent textual IR, runs it through a fixed pass
// pipeline and the host toolchain, and loads the resulting shared
// object back in as a callable entry point (spec §6).
package opt
