// Package archdesc provides a concrete, minimal HostArchitecture: the
// register file layout and naming a real SLEIGH-backed x86-64 description
// would report, trimmed to the handful of registers the core's test
// scenarios exercise.
package archdesc

import (
	"github.com/Colton1skees/remill/ir"
)

// registerOffset is a canonical 64-bit register's byte offset into the
// State struct the lifted functions receive a pointer to.
type registerOffset struct {
	name   string
	offset uint64
}

// x86_64Registers lists the general-purpose registers this description
// recognizes, in State struct layout order.
var x86_64Registers = []registerOffset{
	{"RAX", 0}, {"RBX", 8}, {"RCX", 16}, {"RDX", 24},
	{"RSP", 32}, {"RBP", 40}, {"RSI", 48}, {"RDI", 56},
	{"RIP", 64}, {"RFLAGS", 72},
}

// subRegisterNames maps each 64-bit register to its sub-register names by
// byte size, e.g. RAX -> EAX/AX/AL.
var subRegisterNames = map[string]map[int]string{
	"RAX": {8: "RAX", 4: "EAX", 2: "AX", 1: "AL"},
	"RBX": {8: "RBX", 4: "EBX", 2: "BX", 1: "BL"},
	"RCX": {8: "RCX", 4: "ECX", 2: "CX", 1: "CL"},
	"RDX": {8: "RDX", 4: "EDX", 2: "DX", 1: "DL"},
	"RSP": {8: "RSP", 4: "ESP", 2: "SP"},
	"RBP": {8: "RBP", 4: "EBP", 2: "BP"},
	"RSI": {8: "RSI", 4: "ESI", 2: "SI"},
	"RDI": {8: "RDI", 4: "EDI", 2: "DI"},
	"RIP": {8: "RIP", 4: "EIP"},
	"RFLAGS": {8: "RFLAGS", 4: "EFLAGS"},
}

// X86_64 is a minimal HostArchitecture covering the general-purpose
// register file plus RIP and RFLAGS.
type X86_64 struct {
	offsets     map[string]uint64
	remappings  map[string]string
}

// NewX86_64 builds the register table and sub-register remapping table
// once.
func NewX86_64() *X86_64 {
	a := &X86_64{offsets: map[string]uint64{}, remappings: map[string]string{}}
	for _, r := range x86_64Registers {
		a.offsets[r.name] = r.offset
		for _, sub := range subRegisterNames[r.name] {
			if sub != r.name {
				a.remappings[sub] = r.name
			}
		}
	}
	return a
}

// HasRegister reports whether name is a canonical 64-bit register this
// description models.
func (a *X86_64) HasRegister(name string) bool {
	_, ok := a.offsets[name]
	return ok
}

// LoadRegisterAddress computes statePtr+offset for the named register and
// returns it alongside the State pointer's natural word type.
func (a *X86_64) LoadRegisterAddress(b ir.Builder, statePtr ir.Value, name string) (ir.Value, ir.Type) {
	offset, ok := a.offsets[name]
	if !ok {
		panic("archdesc: unknown register " + name)
	}
	if offset == 0 {
		return statePtr, ir.TypeI64
	}
	off := b.AllocateInstruction().AsIconst(ir.TypeI64, offset).Insert(b).Return()
	ptr := b.AllocateInstruction().AsIadd(statePtr, off).Insert(b).Return()
	return ptr, ir.TypeI64
}

// StateRegisterRemappings maps every sub-register name (EAX, AX, AL, ...)
// to its containing 64-bit register.
func (a *X86_64) StateRegisterRemappings() map[string]string { return a.remappings }

// RegisterName returns the sub-register name matching offset and size,
// e.g. offset 0/size 4 -> "EAX". If the register at offset has no
// sub-register of that size, the 64-bit register's name is returned (e.g.
// offset 72/size 1 -> "RFLAGS"). Returns "" for an offset this description
// does not model.
func (a *X86_64) RegisterName(offset uint64, size int) string {
	for _, r := range x86_64Registers {
		if r.offset != offset {
			continue
		}
		if name, ok := subRegisterNames[r.name][size]; ok {
			return name
		}
		return r.name
	}
	return ""
}

// WordType returns the architecture's pointer-sized integer type.
func (a *X86_64) WordType() ir.Type { return ir.TypeI64 }

// StatePointerType returns the type of the register-file pointer argument.
func (a *X86_64) StatePointerType() ir.Type { return ir.TypeI64 }

// MemoryPointerType returns the type of the memory-pointer argument/cell.
func (a *X86_64) MemoryPointerType() ir.Type { return ir.TypeI64 }
