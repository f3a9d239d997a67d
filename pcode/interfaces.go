package pcode

import "github.com/Colton1skees/remill/ir"

// Decoder decodes a single instruction's bytes into an ordered p-code
// sequence. Consumed from the external SLEIGH-style disassembler, per
// spec.md §6; decoding bytes to p-code is itself a Non-goal of the core.
type Decoder interface {
	Decode(pc uint64, bytes []byte) ([]Op, error)
}

// HostArchitecture is consumed from the host architecture description: the
// register file layout, naming, and the pointer/word types the core's IR
// needs but never originates itself, per spec.md §6.
type HostArchitecture interface {
	// HasRegister reports whether the host recognizes the canonical
	// register name.
	HasRegister(name string) bool
	// LoadRegisterAddress returns a stable pointer Value into host state
	// for the named register, plus the IR Type that pointer refers to.
	LoadRegisterAddress(b ir.Builder, statePtr ir.Value, name string) (ir.Value, ir.Type)
	// StateRegisterRemappings maps an architecture-reported register name
	// to the canonical name the host actually exposes, e.g. aliasing a
	// sub-register to its containing register.
	StateRegisterRemappings() map[string]string
	// RegisterName asks the external engine to translate a (space, offset,
	// size) register varnode into its canonical name; returns "" if the
	// engine has no name for it.
	RegisterName(offset uint64, size int) string
	// WordType is the architecture's natural pointer-sized integer type.
	WordType() ir.Type
	// StatePointerType is the type of the register-file pointer argument.
	StatePointerType() ir.Type
	// MemoryPointerType is the type of the memory-pointer argument/cell.
	MemoryPointerType() ir.Type
}

// IntrinsicsTable is consumed from the intrinsics table: the two memory
// access primitives p-code LOAD/STORE and ValueLocation's MemoryCell lower
// into, per spec.md §6.
type IntrinsicsTable interface {
	// LoadFromMemory emits IR that reads a value of valueType from memory
	// at index, returning that value.
	LoadFromMemory(b ir.Builder, valueType ir.Type, memory, index ir.Value) ir.Value
	// StoreToMemory emits IR that writes value to memory at index,
	// returning the new memory-pointer value.
	StoreToMemory(b ir.Builder, value, memory, index ir.Value) ir.Value
}

// UserOpHandler implements one CALLOTHER user-op and returns the lift
// status for this op. Any IR the op needs is emitted by the handler itself;
// the only built-in handler, claim_eq, emits none.
type UserOpHandler func(l *lowering, op Op) LiftStatus

// UserOpTable is the ordered list of user-op names reported by the decoder
// plus the name-keyed dispatch table of handlers, per §9's "User-op
// registry" design note: replacing name-lookup-by-index with a small
// dispatch table keyed by canonical name isolates host-specific CALLOTHER
// extensions from OpLowerer.
type UserOpTable struct {
	// Names is the ordered list of user-op names; CALLOTHER's first input
	// is an index into this list.
	Names []string
	// Handlers maps a canonical user-op name to its handler. ClaimEqName
	// is always present; callers may register additional host-specific
	// entries.
	Handlers map[string]UserOpHandler
}

// ClaimEqName is the sentinel user-op name spec.md §3/§4.3/§4.5.7 singles
// out: "this constant really equals this other computed value".
const ClaimEqName = "claim_eq"

// NewUserOpTable returns a UserOpTable with only the built-in claim_eq
// handler registered.
func NewUserOpTable(names []string) *UserOpTable {
	t := &UserOpTable{Names: names, Handlers: map[string]UserOpHandler{}}
	t.Handlers[ClaimEqName] = handleClaimEq
	return t
}

// BranchTakenDescriptor identifies the "branch-taken lift" side channel
// described in spec.md §9: at p-code index Index, the lifter reads Varnode
// as an integer and stores it (truncated/extended to i8) into the
// branch-taken cell, orthogonal to CBRANCH lowering.
type BranchTakenDescriptor struct {
	Index   int
	Varnode Varnode
}
