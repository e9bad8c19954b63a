// Package errors provides the structured error taxonomy used across khir.
//
// Errors are categorized by Phase (where in compilation the error occurred)
// and Kind (the error category from spec §7). The Error type carries rich
// context: a field/name path, the offending value, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBuild, errors.KindTerminated).
//		Path("fn_main", "bb3").
//		Detail("cannot append to a terminated block").
//		Build()
//
// Or use convenience constructors for the common patterns named in spec §7:
//
//	err := errors.DuplicateName(errors.PhaseType, "Tuple")
//	err := errors.UnknownName(errors.PhaseType, "HashTable")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
