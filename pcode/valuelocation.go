package pcode

import (
	"fmt"

	"github.com/Colton1skees/remill/ir"
)

type locationKind byte

const (
	locationRegister locationKind = iota
	locationMemory
	locationConstant
	locationScratch
)

// ValueLocation is the abstract read/write site backing a varnode: a
// register cell, a memory cell, a constant, or a scratch cell, per
// spec.md §3/§4.1. Modeled as a tagged variant rather than a virtual
// hierarchy so Read/Write can pattern-match the four cases exhaustively,
// per §9's "Polymorphism over value locations" design note.
type ValueLocation struct {
	kind locationKind

	// locationRegister, locationScratch: a stable pointer Value the
	// location loads/stores through.
	ptr ir.Value
	typ ir.Type

	// locationMemory: the memory-pointer slot to read/update, the byte
	// index to access, and the intrinsics table that performs the access.
	memSlot    *memorySlot
	memIndex   ir.Value
	intrinsics IntrinsicsTable

	// locationConstant: the concrete value and its declared width.
	constVal ir.Value
}

// RegisterCell returns a ValueLocation backed by a stable host-state
// pointer.
func RegisterCell(ptr ir.Value, typ ir.Type) ValueLocation {
	return ValueLocation{kind: locationRegister, ptr: ptr, typ: typ}
}

// MemoryCellAt returns a ValueLocation backed by the given memory slot and
// byte index, read/written through intrinsics.
func MemoryCellAt(slot *memorySlot, index ir.Value, intrinsics IntrinsicsTable) ValueLocation {
	return ValueLocation{kind: locationMemory, memSlot: slot, memIndex: index, intrinsics: intrinsics}
}

// ConstantLocation returns a ValueLocation backed by a concrete value.
func ConstantLocation(v ir.Value) ValueLocation {
	return ValueLocation{kind: locationConstant, constVal: v}
}

// Read returns an IR value of the requested type from this location, or an
// error if the location cannot produce that type (spec.md §4.1).
func (loc ValueLocation) Read(b ir.Builder, want ir.Type) (ir.Value, error) {
	switch loc.kind {
	case locationRegister, locationScratch:
		return b.AllocateInstruction().AsLoad(loc.ptr, want).Insert(b).Return(), nil
	case locationMemory:
		mem := loc.memSlot.load(b)
		return loc.intrinsics.LoadFromMemory(b, want, mem, loc.memIndex), nil
	case locationConstant:
		if loc.constVal.Type() != want {
			return ir.ValueInvalid, fmt.Errorf("constant location holds %s, requested %s", loc.constVal.Type(), want)
		}
		return loc.constVal, nil
	default:
		return ir.ValueInvalid, fmt.Errorf("BUG: unhandled ValueLocation kind %d", loc.kind)
	}
}

// Write stores value through this location, or fails with Unsupported for
// a Constant (spec.md §4.1: "Constant writes always fail").
func (loc ValueLocation) Write(b ir.Builder, value ir.Value) error {
	switch loc.kind {
	case locationRegister, locationScratch:
		b.AllocateInstruction().AsStore(loc.ptr, value).Insert(b)
		return nil
	case locationMemory:
		mem := loc.memSlot.load(b)
		newMem := loc.intrinsics.StoreToMemory(b, value, mem, loc.memIndex)
		loc.memSlot.store(b, newMem)
		return nil
	case locationConstant:
		return errUnsupportedf("cannot write to a constant location")
	default:
		return fmt.Errorf("BUG: unhandled ValueLocation kind %d", loc.kind)
	}
}
