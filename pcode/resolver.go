package pcode

import (
	"fmt"

	"github.com/Colton1skees/remill/ir"
)

// resolveVarnode dispatches a varnode to a ValueLocation by address space,
// per spec.md §4.4. This is the only place address-space semantics are
// decided; everything downstream works purely in terms of ValueLocation.
func resolveVarnode(l *lowering, v Varnode) (ValueLocation, error) {
	switch v.Space {
	case SpaceConst:
		typ, ok := ir.IntTypeForSize(v.Size)
		if !ok {
			return ValueLocation{}, errUnsupportedf("const varnode has unrepresentable size %d", v.Size)
		}
		b := l.b()
		val := b.AllocateInstruction().AsIconst(typ, v.Offset).Insert(b).Return()
		return ConstantLocation(val), nil

	case SpaceRegister:
		return resolveRegister(l, v)

	case SpaceUnique:
		return l.arena.get(v.Offset, v.Size), nil

	case SpaceRAM:
		return resolveRAM(l, v)

	case SpaceOther:
		// "other" covers host-specific pseudo-spaces SLEIGH occasionally
		// emits (e.g. stack-relative joins); the core has no generic
		// handling for them, and treating one as RAM or a register would
		// silently corrupt state. Per spec.md §4.4 this is always fatal.
		panic(fmt.Sprintf("pcode: unknown address space \"other\" at offset %#x, size %d", v.Offset, v.Size))

	default:
		panic(fmt.Sprintf("pcode: unhandled address space %d", v.Space))
	}
}

// resolveRegister asks the host architecture for a stable pointer to the
// named register, falling back to the unique arena if the architecture
// does not recognize this (offset, size) as a register it models.
func resolveRegister(l *lowering, v Varnode) (ValueLocation, error) {
	name := l.arch.RegisterName(v.Offset, v.Size)
	if name == "" {
		return l.arena.get(v.Offset+1<<40, v.Size), nil
	}
	if remapped, ok := l.arch.StateRegisterRemappings()[name]; ok {
		name = remapped
	}
	if cached, ok := l.regCache[name]; ok {
		return cached, nil
	}
	if !l.arch.HasRegister(name) {
		return l.arena.get(v.Offset+1<<40, v.Size), nil
	}
	ptr, typ := l.arch.LoadRegisterAddress(l.b(), l.statePtr, name)
	loc := RegisterCell(ptr, typ)
	l.regCache[name] = loc
	return loc, nil
}

// resolveRAM builds a memory-space ValueLocation: the byte offset becomes
// an index into the threaded memory pointer, accessed through the
// intrinsics table's load/store primitives rather than a raw dereference
// (spec.md §4.1/§6).
func resolveRAM(l *lowering, v Varnode) (ValueLocation, error) {
	b := l.b()
	idx := b.AllocateInstruction().AsIconst(l.arch.WordType(), v.Offset).Insert(b).Return()
	return MemoryCellAt(l.mem, idx, l.intrinsics), nil
}
