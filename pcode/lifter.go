package pcode

import (
	"fmt"

	"github.com/Colton1skees/remill/ir"
	"github.com/Colton1skees/remill/pcode/pcodeapi"
)

// Instruction is the decodable unit InstructionLifter consumes: an address,
// its encoded bytes, and the byte length the decoder resolved them to (used
// to compute the default fallthrough target), per spec.md §6.
type Instruction struct {
	PC     uint64
	Bytes  []byte
	Length int
}

// FunctionNamePrefix is prepended to every lifted function's name, per
// spec.md §6: "sleigh_remill_instruction_function_<hex-pc>".
const FunctionNamePrefix = "sleigh_remill_instruction_function_"

// Lift decodes instr and lowers its p-code into a new Function appended to
// module, implementing InstructionLifter's orchestration from spec.md §5.7:
//
//  1. decode instr into an ordered p-code sequence;
//  2. build the function skeleton with the fixed four-parameter signature
//     and always-inline/internal-linkage attributes;
//  3. set up the per-lift lowering state (arena, claims, cfg emitter);
//  4. seed the default fallthrough next-pc;
//  5. lower every op in sequence, intercepting control-flow opcodes for
//     CFGEmitter and routing everything else through OpLowerer, honoring
//     the branch-taken side channel if bt is non-nil;
//  6. finalize the CFG into a single return of the threaded memory value;
//  7. report the sticky status alongside the function.
func Lift(
	instr Instruction,
	decoder Decoder,
	module *ir.Module,
	arch HostArchitecture,
	intrinsics IntrinsicsTable,
	userOps *UserOpTable,
	bt *BranchTakenDescriptor,
) (LiftStatus, *ir.Function) {
	ops, err := decoder.Decode(instr.PC, instr.Bytes)
	if err != nil {
		return Invalid, nil
	}

	fn := ir.NewFunction(
		fmt.Sprintf("%s%x", FunctionNamePrefix, instr.PC),
		ir.Signature{
			Params:  []ir.Type{arch.StatePointerType(), arch.MemoryPointerType(), arch.WordType(), arch.WordType()},
			Results: []ir.Type{arch.MemoryPointerType()},
		},
	)
	fn.AlwaysInline = true
	fn.Linkage = ir.LinkageInternal
	module.AddFunction(fn)

	b := fn.Builder()
	entry := b.AllocateBasicBlock()
	b.SetCurrentBlock(entry)

	statePtr := fn.Param(0)
	memory := fn.Param(1)
	branchTakenPtr := fn.Param(2)
	nextPCPtr := fn.Param(3)

	l := newLowering(fn, statePtr, memory, arch, intrinsics, userOps, bt)
	l.cfg.init(branchTakenPtr, nextPCPtr)

	fallthroughPC := instr.PC + uint64(instr.Length)
	l.cfg.RedirectControlFlow(fallthroughPC)

	for _, op := range ops {
		if bt != nil && op.Seq == bt.Index {
			lowerBranchTakenSideChannel(l, *bt)
		}

		switch op.Opcode {
		case OpBranch, OpCall:
			lowerDirectControlFlow(l, op)
		case OpBranchInd, OpCallInd, OpReturn:
			lowerIndirectControlFlow(l, op)
		case OpCBranch:
			lowerCBranch(l, op, fallthroughPC)
		default:
			lowerOp(l, op)
		}

		// A claim recorded by claim_eq is live for exactly the op that
		// immediately follows it; every other op clears it, per spec.md
		// §4.3 ("cleared whenever a p-code op is emitted that is not
		// itself a claim").
		isClaim := false
		if op.Opcode == OpCallOther && len(op.Inputs) > 0 {
			if idx := int(op.Inputs[0].Offset); idx >= 0 && idx < len(l.userOps.Names) {
				isClaim = l.userOps.Names[idx] == ClaimEqName
			}
		}
		if !isClaim {
			l.claims.clear()
		}

		if pcodeapi.PrintLoweredIR {
			fmt.Println(fn.String())
		}
	}

	l.cfg.Finalize(l.mem.load(b))

	return l.status.status(), fn
}

func lowerBranchTakenSideChannel(l *lowering, bt BranchTakenDescriptor) {
	v, err := readVarnode(l, bt.Varnode, ir.TypeI8)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	b.AllocateInstruction().AsStore(l.cfg.branchTakenPtr, v).Insert(b)
}

// lowerDirectControlFlow implements BRANCH/CALL: the target is resolved
// through ClaimContext before use (spec.md §5.5.1/scenario 5). A target
// still in constant space after resolution is Unsupported (internal p-code
// control flow is out of scope); a plain ram-space target carries its
// literal destination address directly in Offset, as before. A target
// claim_eq resolved to some other space (typically a register) names a
// value computed at lift time, so it is read dynamically and redirected
// through the indirect path, exactly like BRANCHIND/CALLIND.
func lowerDirectControlFlow(l *lowering, op Op) {
	if len(op.Inputs) == 0 {
		l.status.setError(fmt.Errorf("op %v: expected a target input", op.Opcode))
		return
	}
	target := l.claims.resolve(op.Inputs[0])
	switch target.Space {
	case SpaceConst:
		l.status.set(Unsupported)
	case SpaceRAM:
		l.cfg.RedirectControlFlow(target.Offset)
	default:
		v, err := readVarnode(l, target, l.arch.WordType())
		if err != nil {
			l.status.set(Unsupported)
			return
		}
		l.cfg.RedirectControlFlowIndirect(v)
	}
}

func lowerIndirectControlFlow(l *lowering, op Op) {
	if len(op.Inputs) == 0 {
		l.status.setError(fmt.Errorf("op %v: expected a target input", op.Opcode))
		return
	}
	target, err := readVarnode(l, op.Inputs[0], l.arch.WordType())
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	l.cfg.RedirectControlFlowIndirect(target)
}

// lowerCBranch implements CBRANCH: Inputs[0] is the taken target, Inputs[1]
// is the boolean condition. Per spec.md §4.5.5/§9, this is the only split
// point CFGEmitter ever introduces. The target is resolved through
// ClaimContext before use, matching the direct-branch path; since
// CFGEmitter's block split only accepts a literal destination address, a
// target still in constant space after resolution (i.e. never claimed) or
// resolved to anything other than ram space is Unsupported.
func lowerCBranch(l *lowering, op Op, fallthroughPC uint64) {
	if len(op.Inputs) != 2 {
		l.status.setError(fmt.Errorf("op CBRANCH: expected a target and a condition input"))
		return
	}
	target := l.claims.resolve(op.Inputs[0])
	if target.Space != SpaceRAM {
		l.status.set(Unsupported)
		return
	}
	cond, err := readVarnode(l, op.Inputs[1], ir.TypeI8)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	l.cfg.TerminateBlockWithCondition(cond, target.Offset, fallthroughPC)
}
