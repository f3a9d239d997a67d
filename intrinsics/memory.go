// Package intrinsics provides the concrete IntrinsicsTable the core's
// p-code LOAD/STORE and memory-space varnodes lower through: every memory
// access becomes a call to a named intrinsic rather than a raw
// dereference, following remill's convention that memory state is an
// opaque, versioned value threaded through the lifted function.
package intrinsics

import (
	"fmt"

	"github.com/Colton1skees/remill/ir"
)

// Memory implements pcode.IntrinsicsTable by naming the two access
// primitives after remill's __remill_read_memory_<N>/__remill_write_memory_<N>
// convention, where N is the access width in bits.
type Memory struct {
	// MemoryType is the opaque memory-pointer type every call threads
	// through and returns.
	MemoryType ir.Type
}

// ReadSymbol returns the intrinsic name for a read of the given type.
func ReadSymbol(valueType ir.Type) string {
	return fmt.Sprintf("__remill_read_memory_%d", valueType.Bits())
}

// WriteSymbol returns the intrinsic name for a write of the given type.
func WriteSymbol(valueType ir.Type) string {
	return fmt.Sprintf("__remill_write_memory_%d", valueType.Bits())
}

// LoadFromMemory emits a call to __remill_read_memory_<N>(memory, index)
// returning a value of valueType.
func (m Memory) LoadFromMemory(b ir.Builder, valueType ir.Type, memory, index ir.Value) ir.Value {
	ref := ir.FuncRef{Name: ReadSymbol(valueType)}
	return b.AllocateInstruction().
		AsCall(ref, []ir.Value{memory, index}, []ir.Type{valueType}).
		Insert(b).
		Return()
}

// StoreToMemory emits a call to __remill_write_memory_<N>(value, memory,
// index) returning the new memory-pointer value.
func (m Memory) StoreToMemory(b ir.Builder, value, memory, index ir.Value) ir.Value {
	ref := ir.FuncRef{Name: WriteSymbol(value.Type())}
	memType := m.MemoryType
	if memType == 0 {
		memType = memory.Type()
	}
	return b.AllocateInstruction().
		AsCall(ref, []ir.Value{value, memory, index}, []ir.Type{memType}).
		Insert(b).
		Return()
}
