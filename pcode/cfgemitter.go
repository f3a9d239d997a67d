package pcode

import "github.com/Colton1skees/remill/ir"

// cfgEmitter owns the small amount of control-flow shape a single lifted
// instruction can have, per spec.md §4.6/§9 "block-split model for
// CBRANCH": CBRANCH is the only point that ever splits a block, so the
// rest of the lift runs in one straight-line block that funnels into a
// single exit block returning the final memory pointer.
type cfgEmitter struct {
	l *lowering

	branchTakenPtr ir.Value
	nextPCPtr      ir.Value

	exit       ir.BasicBlock
	exitCreated bool
}

func newCFGEmitter(l *lowering) *cfgEmitter {
	return &cfgEmitter{l: l}
}

// init records the branch-taken and next-pc output pointers the lifted
// function was given, per the (state_ptr, memory_ptr, branch_taken_ref,
// next_pc_ref) signature in spec.md §3.
func (c *cfgEmitter) init(branchTakenPtr, nextPCPtr ir.Value) {
	c.branchTakenPtr = branchTakenPtr
	c.nextPCPtr = nextPCPtr
}

func (c *cfgEmitter) exitBlock() ir.BasicBlock {
	if !c.exitCreated {
		c.exit = c.l.b().AllocateBasicBlock()
		c.exitCreated = true
	}
	return c.exit
}

// RedirectControlFlow sets the next-pc output to a fixed target without
// splitting the current block: used for direct BRANCH/CALL and for the
// implicit fallthrough every instruction gets before OpLowerer runs.
func (c *cfgEmitter) RedirectControlFlow(targetPC uint64) {
	b := c.l.b()
	target := b.AllocateInstruction().AsIconst(c.l.arch.WordType(), targetPC).Insert(b).Return()
	c.RedirectControlFlowIndirect(target)
}

// RedirectControlFlowIndirect sets the next-pc output to a computed value:
// used for BRANCHIND/CALLIND/RETURN.
func (c *cfgEmitter) RedirectControlFlowIndirect(target ir.Value) {
	b := c.l.b()
	b.AllocateInstruction().AsStore(c.nextPCPtr, target).Insert(b)
}

// TerminateBlockWithCondition implements CBRANCH: it splits the current
// block into a taken and not-taken successor, each of which records its
// own branch-taken flag and next-pc value before funneling into the
// shared exit block, per spec.md §4.6/§4.5.5.
func (c *cfgEmitter) TerminateBlockWithCondition(cond ir.Value, takenPC, notTakenPC uint64) {
	b := c.l.b()
	takenBlk := b.AllocateBasicBlock()
	notTakenBlk := b.AllocateBasicBlock()

	b.AllocateInstruction().AsBrnz(cond, takenBlk).Insert(b)
	b.AllocateInstruction().AsJump(notTakenBlk).Insert(b)

	b.SetCurrentBlock(takenBlk)
	c.writeBranchOutcome(true, takenPC)
	b.AllocateInstruction().AsJump(c.exitBlock()).Insert(b)

	b.SetCurrentBlock(notTakenBlk)
	c.writeBranchOutcome(false, notTakenPC)
	b.AllocateInstruction().AsJump(c.exitBlock()).Insert(b)

	b.SetCurrentBlock(c.exitBlock())
}

func (c *cfgEmitter) writeBranchOutcome(taken bool, pc uint64) {
	b := c.l.b()
	var flag uint64
	if taken {
		flag = 1
	}
	flagVal := b.AllocateInstruction().AsIconst(ir.TypeI8, flag).Insert(b).Return()
	b.AllocateInstruction().AsStore(c.branchTakenPtr, flagVal).Insert(b)
	pcVal := b.AllocateInstruction().AsIconst(c.l.arch.WordType(), pc).Insert(b).Return()
	b.AllocateInstruction().AsStore(c.nextPCPtr, pcVal).Insert(b)
}

// Finalize funnels the current block into the exit block (if CBRANCH never
// ran, there is only ever one block and no split), then terminates the
// exit block with a Return of the final memory pointer.
func (c *cfgEmitter) Finalize(memory ir.Value) {
	b := c.l.b()
	cur := b.CurrentBlock()
	if cur.ID() != c.exitBlock().ID() && !cur.HasTerminator() {
		b.AllocateInstruction().AsJump(c.exitBlock()).Insert(b)
	}
	b.SetCurrentBlock(c.exitBlock())
	if !c.exitBlock().HasTerminator() {
		b.AllocateInstruction().AsReturn(memory).Insert(b)
	}
}
