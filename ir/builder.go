package ir

import (
	"strconv"
	"strings"
)

// Builder is used to build up the Instructions and BasicBlocks of a single
// Function. Trimmed from the teacher's ssa.Builder: no DeclareVariable/
// FindValue/Seal, since the core drives every value definition explicitly
// (see the BasicBlock doc in basic_block.go).
type Builder interface {
	// AllocateBasicBlock creates a new, empty BasicBlock in the function.
	AllocateBasicBlock() BasicBlock
	// CurrentBlock returns the block instructions are currently inserted into.
	CurrentBlock() BasicBlock
	// SetCurrentBlock changes the insertion point.
	SetCurrentBlock(b BasicBlock)
	// AllocateInstruction returns a fresh, zeroed Instruction ready for an
	// AsXxx call.
	AllocateInstruction() *Instruction
	// InsertInstruction appends instr to CurrentBlock and, if the opcode
	// produces a value, allocates and attaches its result Value(s).
	InsertInstruction(instr *Instruction)
	// Blocks returns every BasicBlock allocated so far, in allocation order.
	Blocks() []BasicBlock
	// Format returns a debug dump of every block and instruction.
	Format() string
}

type builder struct {
	blockPool       pool[basicBlock]
	instructionPool pool[Instruction]
	blocks          []*basicBlock
	currentBB       *basicBlock
	nextValueID     ValueID
}

func newBuilder() *builder {
	return &builder{
		blockPool:       newPool[basicBlock](),
		instructionPool: newPool[Instruction](),
	}
}

func (b *builder) AllocateBasicBlock() BasicBlock {
	blk := b.blockPool.allocate()
	blk.reset()
	blk.id = BasicBlockID(len(b.blocks))
	blk.name = "blk" + strconv.Itoa(int(blk.id))
	b.blocks = append(b.blocks, blk)
	return blk
}

func (b *builder) CurrentBlock() BasicBlock { return b.currentBB }

func (b *builder) SetCurrentBlock(bb BasicBlock) { b.currentBB = bb.(*basicBlock) }

func (b *builder) AllocateInstruction() *Instruction {
	instr := b.instructionPool.allocate()
	instr.reset()
	return instr
}

func (b *builder) allocateValue(typ Type) Value {
	v := Value(b.nextValueID).setType(typ)
	b.nextValueID++
	return v
}

func (b *builder) InsertInstruction(instr *Instruction) {
	b.currentBB.InsertInstruction(instr)

	t1, rest := instructionResultTypes(instr)
	if t1.invalid() {
		return
	}
	instr.rValue = b.allocateValue(t1)
	if len(rest) > 0 {
		instr.rValues = make([]Value, len(rest))
		for i, t := range rest {
			instr.rValues[i] = b.allocateValue(t)
		}
	}
}

func (b *builder) Blocks() []BasicBlock {
	ret := make([]BasicBlock, len(b.blocks))
	for i, blk := range b.blocks {
		ret[i] = blk
	}
	return ret
}

func (b *builder) Format() string {
	var sb strings.Builder
	for _, bb := range b.blocks {
		sb.WriteString(bb.Name())
		sb.WriteString(":\n")
		for cur := bb.Root(); cur != nil; cur = cur.Next() {
			sb.WriteByte('\t')
			sb.WriteString(cur.Format())
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// instructionResultTypes returns the result type(s) an instruction produces,
// given its already-populated operand types, mirroring the teacher's
// per-opcode instructionReturnTypes table.
func instructionResultTypes(instr *Instruction) (Type, []Type) {
	switch instr.opcode {
	case OpcodeIconst, OpcodeF32const, OpcodeF64const:
		return instr.typ, nil
	case OpcodeIadd, OpcodeIsub, OpcodeImul, OpcodeUdiv, OpcodeSdiv, OpcodeUrem, OpcodeSrem,
		OpcodeBand, OpcodeBor, OpcodeBxor, OpcodeIshl, OpcodeUshr, OpcodeSshr:
		return instr.v.Type(), nil
	case OpcodeBnot, OpcodeIneg, OpcodePopcnt:
		return instr.v.Type(), nil
	case OpcodeIcmp, OpcodeFcmp:
		return TypeI8, nil
	case OpcodeUAddOverflow, OpcodeSAddOverflow, OpcodeSSubOverflow:
		return instr.v.Type(), []Type{TypeI8}
	case OpcodeIreduce, OpcodeUExtend, OpcodeSExtend, OpcodeFcvtFromInt, OpcodeFcvtToInt,
		OpcodeFpromote, OpcodeFdemote:
		return instr.typ, nil
	case OpcodeFadd, OpcodeFsub, OpcodeFmul, OpcodeFdiv:
		return instr.v.Type(), nil
	case OpcodeFneg, OpcodeFabs, OpcodeSqrt, OpcodeCeil, OpcodeFloor, OpcodeNearest:
		return instr.v.Type(), nil
	case OpcodeSelect:
		return instr.v2.Type(), nil
	case OpcodeMultiEqual:
		return instr.typ, nil
	case OpcodeLoad:
		return instr.typ, nil
	case OpcodeStore, OpcodeJump, OpcodeBrnz, OpcodeReturn:
		return typeInvalid, nil
	case OpcodeCall:
		if len(instr.resultTyps) == 0 {
			return typeInvalid, nil
		}
		return instr.resultTyps[0], instr.resultTyps[1:]
	default:
		panic("BUG: unhandled opcode in instructionResultTypes")
	}
}
