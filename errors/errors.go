package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which compilation stage raised the error.
type Phase string

const (
	PhaseType     Phase = "type"     // type manager: interning, layout, named-type registration
	PhaseBuild    Phase = "build"    // IR builder: instruction/block/phi construction
	PhaseLower    Phase = "lower"    // assembler or optimizing backend lowering a program
	PhaseLink     Phase = "link"     // optimizing backend: object emission, toolchain link, dlopen
	PhaseSchedule Phase = "schedule" // execution driver: pipeline scheduling and dispatch
	PhaseCache    Phase = "cache"    // compilation cache trie operations
)

// Kind categorizes the error; these map directly onto the kinds named in
// spec §7.
type Kind string

const (
	KindDuplicateName              Kind = "duplicate_name"
	KindUnknownName                Kind = "unknown_name"
	KindUntypedFragment            Kind = "untyped_fragment"
	KindTerminated                 Kind = "terminated"
	KindUnterminatedSwitch         Kind = "unterminated_switch"
	KindInvalidConstantDependency  Kind = "invalid_constant_dependency"
	KindBackendBuildFailed         Kind = "backend_build_failed"
	KindDynamicLoaderFailed        Kind = "dynamic_loader_failed"
	KindOutputPipelineHasSuccessor Kind = "output_pipeline_has_successor"
)

// Error is the structured error type used throughout khir.
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error's phase and kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New creates a new error builder.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the name path (e.g. function name, block name).
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value.
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the kinds named in spec §7.

// DuplicateName is raised re-declaring a named struct, opaque type, or
// public function under a name already registered.
func DuplicateName(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicateName,
		Path:   []string{name},
		Detail: fmt.Sprintf("name %q already registered", name),
	}
}

// UnknownName is raised looking up an undeclared named entity.
func UnknownName(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownName,
		Path:   []string{name},
		Detail: fmt.Sprintf("name %q not declared", name),
	}
}

// UntypedFragment is raised calling type_of on ptr_add, call_arg, or
// phi_member in isolation.
func UntypedFragment(opcodeName string) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindUntypedFragment,
		Detail: fmt.Sprintf("%s has no standalone type", opcodeName),
	}
}

// Terminated is raised appending to a basic block whose last instruction
// is already a terminator.
func Terminated(funcName string, blockID int) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindTerminated,
		Path:   []string{funcName},
		Detail: fmt.Sprintf("basic block %d is already terminated", blockID),
	}
}

// UnterminatedSwitch is raised switching the current block while the
// previous current block has no terminator.
func UnterminatedSwitch(funcName string, blockID int) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindUnterminatedSwitch,
		Path:   []string{funcName},
		Detail: fmt.Sprintf("basic block %d has no terminator", blockID),
	}
}

// InvalidConstantDependency is raised when the constant DAG cannot be
// topologically emitted: a cycle, or a dangling reference.
func InvalidConstantDependency(detail string) *Error {
	return &Error{
		Phase:  PhaseLower,
		Kind:   KindInvalidConstantDependency,
		Detail: detail,
	}
}

// BackendBuildFailed is raised when the assembler's error handler fires,
// or the external toolchain returns non-zero.
func BackendBuildFailed(backend string, cause error) *Error {
	return &Error{
		Phase:  PhaseLower,
		Kind:   KindBackendBuildFailed,
		Detail: fmt.Sprintf("%s backend failed to build program", backend),
		Cause:  cause,
	}
}

// DynamicLoaderFailed is raised when loading the optimizing backend's
// compiled artifact fails.
func DynamicLoaderFailed(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindDynamicLoaderFailed,
		Path:   []string{path},
		Detail: "failed to load compiled artifact",
		Cause:  cause,
	}
}

// OutputPipelineHasSuccessor is raised when the driver's topological order
// ends in a pipeline that still has successors — a scheduling invariant
// violation.
func OutputPipelineHasSuccessor(pipelineID int) *Error {
	return &Error{
		Phase:  PhaseSchedule,
		Kind:   KindOutputPipelineHasSuccessor,
		Detail: fmt.Sprintf("sink pipeline %d still has successors", pipelineID),
		Value:  pipelineID,
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
