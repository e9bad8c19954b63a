package asm

// Register is a physical x86-64 general-purpose or xmm register.
type Register int

const (
	RAX Register = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

func (r Register) String() string {
	names := [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	if int(r) < len(names) {
		return names[r]
	}
	return "?"
}

// XMM is an xmm register used for f64 values.
type XMM int

const (
	XMM0 XMM = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
)

// sysvIntArgRegs is the SysV x86-64 integer/pointer argument register
// order (spec §5.1).
var sysvIntArgRegs = [...]Register{RDI, RSI, RDX, RCX, R8, R9}

// sysvFloatArgRegs is the SysV float argument register order.
var sysvFloatArgRegs = [...]XMM{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7}

// calleeSaved lists the registers a function must preserve across calls,
// in the fixed push order the prologue/epilogue use.
var calleeSaved = [...]Register{RBX, R12, R13, R14, R15, RBP}

// allocatableInt is the pool of general-purpose registers available to a
// register allocator, excluding RSP (stack pointer), RBP (frame
// pointer), and R10/R11, which the lowering pass in lower.go keeps free
// as scratch registers for reloading spilled operands.
var allocatableInt = [...]Register{RAX, RCX, RDX, RBX, RSI, RDI, R8, R9, R12, R13, R14, R15}

// allocatableFloat is the pool of xmm registers available to a register
// allocator, excluding XMM14/XMM15, kept as float scratch registers.
var allocatableFloat = [...]XMM{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7, XMM8, XMM9, XMM10, XMM11, XMM12, XMM13}

// intScratch1/intScratch2 and floatScratch1/floatScratch2 are the fixed
// scratch registers the lowering pass reloads spilled operands into
// immediately before the instruction that consumes them.
const (
	intScratch1 = R10
	intScratch2 = R11
)

const (
	floatScratch1 = XMM14
	floatScratch2 = XMM15
)
