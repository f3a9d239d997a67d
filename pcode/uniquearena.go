package pcode

import (
	"fmt"

	"github.com/Colton1skees/remill/ir"
)

// uniqueArena lazily allocates a scratch cell for each distinct offset it is
// asked about, backing both SLEIGH's "unique" address space and the
// fallback home for register varnodes the host architecture does not
// recognize, per spec.md §3/§4.2. An arena is created fresh for one
// instruction lift and discarded afterward.
type uniqueArena struct {
	l       *lowering
	cells   map[uint64]scratchCell
	nextPtr int64
}

// scratchCellBase is the synthetic address range scratch cells are carved
// from, kept well clear of the register-file byte offsets archdesc hands
// out so the two never alias in the interpreter's flat address space.
const scratchCellBase = int64(1) << 32

type scratchCell struct {
	ptr  ir.Value // pointer Value (state_ptr-independent; a bare address token)
	typ  ir.Type
	name string
}

func newUniqueArena(l *lowering) *uniqueArena {
	return &uniqueArena{l: l, cells: map[uint64]scratchCell{}, nextPtr: scratchCellBase}
}

// get returns the ScratchCell backing offset, allocating one of the given
// byte size on first reference. Subsequent references with a different size
// reuse the same cell's address but that is a caller contract violation the
// VarnodeResolver never triggers in practice (size is fixed by the varnode
// that first names the offset).
func (a *uniqueArena) get(offset uint64, size int) ValueLocation {
	if cell, ok := a.cells[offset]; ok {
		return ValueLocation{kind: locationScratch, ptr: cell.ptr, typ: cell.typ}
	}
	typ, ok := ir.IntTypeForSize(size)
	if !ok {
		typ = ir.TypeI64
	}
	ptr := a.allocatePointer()
	cell := scratchCell{ptr: ptr, typ: typ, name: fmt.Sprintf("unique_%x:%d", offset, size)}
	a.cells[offset] = cell
	return ValueLocation{kind: locationScratch, ptr: cell.ptr, typ: cell.typ}
}

// allocatePointer hands out a fresh synthetic address as an ir.Value
// constant, distinct from every register or previously-allocated scratch
// address.
func (a *uniqueArena) allocatePointer() ir.Value {
	b := a.l.fn.Builder()
	ptrVal := b.AllocateInstruction().AsIconst(ir.TypeI64, uint64(a.nextPtr)).Insert(b).Return()
	a.nextPtr += 16 // room for the widest varnode (16 bytes)
	return ptrVal
}
