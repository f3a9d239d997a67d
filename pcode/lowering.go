package pcode

import "github.com/Colton1skees/remill/ir"

// memorySlot threads the single opaque memory-pointer value through a lift,
// per spec.md §3's "memory pointer" convention: LOAD never mutates it, and
// STORE replaces it with whatever intrinsics.StoreToMemory returns.
type memorySlot struct {
	current ir.Value
}

func (m *memorySlot) load(_ ir.Builder) ir.Value { return m.current }

func (m *memorySlot) store(_ ir.Builder, v ir.Value) { m.current = v }

// lowering is OpLowerer's working state for one instruction lift: the
// function under construction, the host collaborators, and the per-lift
// scratch described in spec.md §4. A fresh lowering is built for every
// InstructionLifter.Lift call and discarded at the end of it, per §5 "per-
// instruction scratch dropped on exit".
type lowering struct {
	fn  *ir.Function
	arch HostArchitecture
	intrinsics IntrinsicsTable
	userOps    *UserOpTable

	statePtr ir.Value
	mem      *memorySlot

	arena  *uniqueArena
	claims *claimContext
	cfg    *cfgEmitter

	// branchTaken is non-nil when the caller asked for the branch-taken
	// side channel (spec.md §9 "branch-taken side channel"); it names the
	// p-code sequence index and the varnode whose value is stored into the
	// branch-taken cell at that index.
	branchTaken      *BranchTakenDescriptor
	branchTakenValue ir.Value

	regCache map[string]ValueLocation

	status stickyStatus
}

func newLowering(fn *ir.Function, statePtr, initialMemory ir.Value, arch HostArchitecture, intrinsics IntrinsicsTable, userOps *UserOpTable, bt *BranchTakenDescriptor) *lowering {
	l := &lowering{
		fn:          fn,
		arch:        arch,
		intrinsics:  intrinsics,
		userOps:     userOps,
		statePtr:    statePtr,
		mem:         &memorySlot{current: initialMemory},
		claims:      newClaimContext(),
		branchTaken: bt,
		regCache:    map[string]ValueLocation{},
	}
	l.arena = newUniqueArena(l)
	l.cfg = newCFGEmitter(l)
	return l
}

// b returns the IR builder for the function under construction.
func (l *lowering) b() ir.Builder { return l.fn.Builder() }
