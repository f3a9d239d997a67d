package ir

import "fmt"

// BasicBlock is a straight-line sequence of instructions ending in at most
// one terminator. Grounded on the teacher's ssa.BasicBlock, trimmed of the
// block-parameter/sealing machinery: the core never needs general SSA
// variable resolution, since CFGEmitter's only split point (CBRANCH) never
// merges values through a block parameter, and MULTIEQUAL takes its
// incoming values directly from the p-code op instead (see DESIGN.md).
type BasicBlock interface {
	// ID returns the unique ID of this block.
	ID() BasicBlockID
	// Name returns a debug name for this block, e.g. "blk0".
	Name() string
	// InsertInstruction appends instr to the tail of this block.
	InsertInstruction(instr *Instruction)
	// Root returns the first instruction in this block, or nil if empty.
	Root() *Instruction
	// Tail returns the last instruction in this block, or nil if empty.
	Tail() *Instruction
	// HasTerminator returns true if Tail is a control-flow instruction.
	HasTerminator() bool
}

// BasicBlockID is the unique ID of a basicBlock within its Function.
type BasicBlockID uint32

type basicBlock struct {
	id                      BasicBlockID
	name                    string
	rootInstr, currentInstr *Instruction
}

func (bb *basicBlock) ID() BasicBlockID { return bb.id }
func (bb *basicBlock) Name() string     { return bb.name }

func (bb *basicBlock) InsertInstruction(instr *Instruction) {
	if bb.currentInstr != nil {
		bb.currentInstr.next = instr
		instr.prev = bb.currentInstr
	} else {
		bb.rootInstr = instr
	}
	bb.currentInstr = instr
}

func (bb *basicBlock) Root() *Instruction { return bb.rootInstr }
func (bb *basicBlock) Tail() *Instruction { return bb.currentInstr }

func (bb *basicBlock) HasTerminator() bool {
	return bb.currentInstr != nil && bb.currentInstr.IsTerminator()
}

func (bb *basicBlock) reset() {
	bb.rootInstr, bb.currentInstr = nil, nil
}

// String implements fmt.Stringer for debugging.
func (bb *basicBlock) String() string {
	return fmt.Sprintf("blk%d", bb.id)
}
