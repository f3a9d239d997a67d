package pcode

import (
	"fmt"

	"github.com/Colton1skees/remill/ir"
	"github.com/Colton1skees/remill/pcode/pcodeapi"
)

// readVarnode reads v at the given IR type, resolving any claim_eq
// substitution first (spec.md §4.3: every varnode read consults the claim
// context before address-space resolution).
func readVarnode(l *lowering, v Varnode, typ ir.Type) (ir.Value, error) {
	loc, err := resolveVarnode(l, l.claims.resolve(v))
	if err != nil {
		return ir.ValueInvalid, err
	}
	return loc.Read(l.b(), typ)
}

// writeVarnode writes value through v. Output varnodes are never subject to
// claim substitution.
func writeVarnode(l *lowering, v Varnode, value ir.Value) error {
	loc, err := resolveVarnode(l, v)
	if err != nil {
		return err
	}
	return loc.Write(l.b(), value)
}

func intType(v Varnode) (ir.Type, error) {
	t, ok := ir.IntTypeForSize(v.Size)
	if !ok {
		return 0, errUnsupportedf("no integer type for varnode size %d", v.Size)
	}
	return t, nil
}

func floatType(v Varnode) (ir.Type, error) {
	t, ok := ir.FloatTypeForSize(v.Size)
	if !ok {
		return 0, errUnsupportedf("no float type for varnode size %d", v.Size)
	}
	return t, nil
}

// lowerOp lowers a single non-control-flow p-code operation into IR,
// implementing the opcode table of spec.md §4.5. Control-flow opcodes
// (BRANCH, CBRANCH, CALL, BRANCHIND, CALLIND, RETURN) are intercepted by
// InstructionLifter before reaching here, per §5.7.
//
// lowerOp never aborts lowering itself: on failure it records the status on
// l.status and returns, leaving later ops free to keep lowering, per the
// sticky-status invariant in §7.
func lowerOp(l *lowering, op Op) {
	if pcodeapi.TraceLowering {
		fmt.Printf("lowering op %d: %v\n", op.Seq, op.Opcode)
	}

	switch op.Opcode {

	// --- unary ---

	case OpCopy:
		lowerUnaryPassthrough(l, op)

	case OpCast:
		// CAST changes the declared type of a varnode without changing its
		// bit pattern (e.g. pointer-vs-integer bookkeeping the decoder
		// cares about); the core's flat IR has no such distinction to
		// preserve, so it lowers identically to COPY.
		lowerUnaryPassthrough(l, op)

	case OpBoolNegate:
		lowerUnaryBool(l, op, func(b ir.Builder, x ir.Value) ir.Value {
			return b.AllocateInstruction().AsIcmp(x, zero(b, x.Type()), ir.IntEqual).Insert(b).Return()
		})

	case OpIntZext:
		lowerExtend(l, op, false)

	case OpIntSext:
		lowerExtend(l, op, true)

	case OpInt2Comp:
		lowerUnaryArith(l, op, func(i *ir.Instruction, x ir.Value) *ir.Instruction { return i.AsIneg(x) })

	case OpIntNegate:
		lowerUnaryArith(l, op, func(i *ir.Instruction, x ir.Value) *ir.Instruction { return i.AsBnot(x) })

	case OpPopcount:
		lowerPopcount(l, op)

	case OpFloatNeg:
		lowerUnaryFloat(l, op, func(i *ir.Instruction, x ir.Value) *ir.Instruction { return i.AsFneg(x) })
	case OpFloatAbs:
		lowerUnaryFloat(l, op, func(i *ir.Instruction, x ir.Value) *ir.Instruction { return i.AsFabs(x) })
	case OpFloatSqrt:
		lowerUnaryFloat(l, op, func(i *ir.Instruction, x ir.Value) *ir.Instruction { return i.AsSqrt(x) })
	case OpFloatCeil:
		lowerUnaryFloat(l, op, func(i *ir.Instruction, x ir.Value) *ir.Instruction { return i.AsCeil(x) })
	case OpFloatFloor:
		lowerUnaryFloat(l, op, func(i *ir.Instruction, x ir.Value) *ir.Instruction { return i.AsFloor(x) })
	case OpFloatRound:
		lowerUnaryFloat(l, op, func(i *ir.Instruction, x ir.Value) *ir.Instruction { return i.AsNearest(x) })

	case OpFloatNan:
		lowerFloatNan(l, op)

	case OpFloatInt2Float:
		lowerInt2Float(l, op)

	case OpFloatFloat2Float:
		lowerFloat2Float(l, op)

	case OpFloatTrunc:
		lowerFloatTrunc(l, op)

	// --- binary integer ---

	case OpIntAnd:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsBand(x, y) })
	case OpIntOr:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsBor(x, y) })
	case OpIntXor:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsBxor(x, y) })
	case OpIntAdd:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsIadd(x, y) })
	case OpIntSub:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsIsub(x, y) })
	case OpIntMult:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsImul(x, y) })
	case OpIntDiv:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsUdiv(x, y) })
	case OpIntSDiv:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsSdiv(x, y) })
	case OpIntRem:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsUrem(x, y) })
	case OpIntSRem:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsSrem(x, y) })
	case OpIntLeft:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsIshl(x, y) })
	case OpIntRight:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsUshr(x, y) })
	case OpIntSRight:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsSshr(x, y) })

	case OpIntEqual:
		lowerIcmp(l, op, ir.IntEqual)
	case OpIntNotEqual:
		lowerIcmp(l, op, ir.IntNotEqual)
	case OpIntLess:
		lowerIcmp(l, op, ir.IntLessThanUnsigned)
	case OpIntSLess:
		lowerIcmp(l, op, ir.IntLessThanSigned)
	case OpIntLessEqual:
		// Unsigned <=. See DESIGN.md for the INT_LESSEQUAL/INT_SLESSEQUAL
		// predicate-assignment decision.
		lowerIcmp(l, op, ir.IntLessThanOrEqualUnsigned)
	case OpIntSLessEqual:
		// Signed <=. See DESIGN.md.
		lowerIcmp(l, op, ir.IntLessThanOrEqualSigned)

	case OpIntCarry:
		lowerOverflow(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsUAddOverflow(x, y) })
	case OpIntSCarry:
		lowerOverflow(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsSAddOverflow(x, y) })
	case OpIntSBorrow:
		lowerOverflow(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsSSubOverflow(x, y) })

	// --- binary boolean ---

	case OpBoolAnd:
		lowerBoolBinary(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsBand(x, y) })
	case OpBoolOr:
		lowerBoolBinary(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsBor(x, y) })
	case OpBoolXor:
		lowerBoolBinary(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsBxor(x, y) })

	// --- binary float ---

	case OpFloatEqual:
		lowerFcmp(l, op, ir.FloatEqual)
	case OpFloatNotEqual:
		lowerFcmp(l, op, ir.FloatNotEqual)
	case OpFloatLess:
		lowerFcmp(l, op, ir.FloatLessThan)
	case OpFloatLessEqual:
		lowerFcmp(l, op, ir.FloatLessThanOrEqual)
	case OpFloatAdd:
		lowerBinaryFloat(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsFadd(x, y) })
	case OpFloatSub:
		lowerBinaryFloat(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsFsub(x, y) })
	case OpFloatMult:
		lowerBinaryFloat(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsFmul(x, y) })
	case OpFloatDiv:
		lowerBinaryFloat(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsFdiv(x, y) })

	// --- special ---

	case OpLoad:
		lowerIndirectLoad(l, op)
	case OpStore:
		lowerIndirectStore(l, op)
	case OpPiece:
		lowerPiece(l, op)
	case OpSubpiece:
		lowerSubpiece(l, op)
	case OpPtrAdd:
		lowerPtrAdd(l, op)
	case OpPtrSub:
		lowerBinaryArith(l, op, func(i *ir.Instruction, x, y ir.Value) *ir.Instruction { return i.AsIadd(x, y) })

	// --- variadic ---

	case OpMultiEqual:
		lowerMultiEqual(l, op)
	case OpCPoolRef, OpNew, OpIndirect:
		l.status.set(Unsupported)

	// --- user-defined ---

	case OpCallOther:
		lowerCallOther(l, op)

	default:
		l.status.set(Unsupported)
	}
}

func zero(b ir.Builder, typ ir.Type) ir.Value {
	return b.AllocateInstruction().AsIconst(typ, 0).Insert(b).Return()
}

func lowerUnaryPassthrough(l *lowering, op Op) {
	if op.Output == nil || len(op.Inputs) != 1 {
		l.status.setError(fmt.Errorf("op %v: expected 1 input and an output", op.Opcode))
		return
	}
	typ, err := intType(*op.Output)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	v, err := readVarnode(l, op.Inputs[0], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	if err := writeVarnode(l, *op.Output, v); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerUnaryArith(l *lowering, op Op, build func(*ir.Instruction, ir.Value) *ir.Instruction) {
	if op.Output == nil || len(op.Inputs) != 1 {
		l.status.setError(fmt.Errorf("op %v: expected 1 input and an output", op.Opcode))
		return
	}
	typ, err := intType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	result := build(b.AllocateInstruction(), x).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

// lowerPopcount implements POPCOUNT: count-ones the input, then fit the
// result to the output varnode's own width, per spec.md §4.5.1 — unlike
// INT_2COMP/INT_NEGATE, POPCOUNT's output varnode is routinely narrower than
// its input (e.g. counting bits of a 64-bit value into a one-byte result),
// so it cannot share lowerUnaryArith's same-width assumption. The count is
// never negative, so widening zero-extends.
func lowerPopcount(l *lowering, op Op) {
	if op.Output == nil || len(op.Inputs) != 1 {
		l.status.setError(fmt.Errorf("op POPCOUNT: expected 1 input and an output"))
		return
	}
	srcTyp, err := intType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	dstTyp, err := intType(*op.Output)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], srcTyp)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	result := b.AllocateInstruction().AsPopcnt(x).Insert(b).Return()
	switch {
	case dstTyp == srcTyp:
		// no-op
	case dstTyp.Bits() > srcTyp.Bits():
		result = b.AllocateInstruction().AsUExtend(result, dstTyp).Insert(b).Return()
	default:
		result = b.AllocateInstruction().AsIreduce(result, dstTyp).Insert(b).Return()
	}
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerUnaryBool(l *lowering, op Op, build func(ir.Builder, ir.Value) ir.Value) {
	if op.Output == nil || len(op.Inputs) != 1 {
		l.status.setError(fmt.Errorf("op %v: expected 1 input and an output", op.Opcode))
		return
	}
	x, err := readVarnode(l, op.Inputs[0], ir.TypeI8)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	result := build(l.b(), x)
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerUnaryFloat(l *lowering, op Op, build func(*ir.Instruction, ir.Value) *ir.Instruction) {
	if op.Output == nil || len(op.Inputs) != 1 {
		l.status.setError(fmt.Errorf("op %v: expected 1 input and an output", op.Opcode))
		return
	}
	typ, err := floatType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	result := build(b.AllocateInstruction(), x).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerFloatNan(l *lowering, op Op) {
	if op.Output == nil || len(op.Inputs) != 1 {
		l.status.setError(fmt.Errorf("op FLOAT_NAN: expected 1 input and an output"))
		return
	}
	typ, err := floatType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	result := b.AllocateInstruction().AsFcmp(x, x, ir.FloatNotEqual).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerExtend(l *lowering, op Op, signed bool) {
	if op.Output == nil || len(op.Inputs) != 1 {
		l.status.setError(fmt.Errorf("op extend: expected 1 input and an output"))
		return
	}
	srcTyp, err := intType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	dstTyp, err := intType(*op.Output)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], srcTyp)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	var result ir.Value
	b := l.b()
	if dstTyp == srcTyp {
		result = x
	} else if signed {
		result = b.AllocateInstruction().AsSExtend(x, dstTyp).Insert(b).Return()
	} else {
		result = b.AllocateInstruction().AsUExtend(x, dstTyp).Insert(b).Return()
	}
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerBinaryArith(l *lowering, op Op, build func(*ir.Instruction, ir.Value, ir.Value) *ir.Instruction) {
	if op.Output == nil || len(op.Inputs) != 2 {
		l.status.setError(fmt.Errorf("op %v: expected 2 inputs and an output", op.Opcode))
		return
	}
	typ, err := intType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	y, err := readVarnode(l, op.Inputs[1], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	result := build(b.AllocateInstruction(), x, y).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerBinaryFloat(l *lowering, op Op, build func(*ir.Instruction, ir.Value, ir.Value) *ir.Instruction) {
	if op.Output == nil || len(op.Inputs) != 2 {
		l.status.setError(fmt.Errorf("op %v: expected 2 inputs and an output", op.Opcode))
		return
	}
	typ, err := floatType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	y, err := readVarnode(l, op.Inputs[1], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	result := build(b.AllocateInstruction(), x, y).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerBoolBinary(l *lowering, op Op, build func(*ir.Instruction, ir.Value, ir.Value) *ir.Instruction) {
	if op.Output == nil || len(op.Inputs) != 2 {
		l.status.setError(fmt.Errorf("op %v: expected 2 inputs and an output", op.Opcode))
		return
	}
	x, err := readVarnode(l, op.Inputs[0], ir.TypeI8)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	y, err := readVarnode(l, op.Inputs[1], ir.TypeI8)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	result := build(b.AllocateInstruction(), x, y).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerIcmp(l *lowering, op Op, cond ir.IntegerCmpCond) {
	if op.Output == nil || len(op.Inputs) != 2 {
		l.status.setError(fmt.Errorf("op %v: expected 2 inputs and an output", op.Opcode))
		return
	}
	typ, err := intType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	y, err := readVarnode(l, op.Inputs[1], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	result := b.AllocateInstruction().AsIcmp(x, y, cond).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerFcmp(l *lowering, op Op, cond ir.FloatCmpCond) {
	if op.Output == nil || len(op.Inputs) != 2 {
		l.status.setError(fmt.Errorf("op %v: expected 2 inputs and an output", op.Opcode))
		return
	}
	typ, err := floatType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	y, err := readVarnode(l, op.Inputs[1], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	result := b.AllocateInstruction().AsFcmp(x, y, cond).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

// lowerOverflow implements INT_CARRY/INT_SCARRY/INT_SBORROW: the checked
// op's overflow flag, not its sum, is the value p-code wants.
func lowerOverflow(l *lowering, op Op, build func(*ir.Instruction, ir.Value, ir.Value) *ir.Instruction) {
	if op.Output == nil || len(op.Inputs) != 2 {
		l.status.setError(fmt.Errorf("op %v: expected 2 inputs and an output", op.Opcode))
		return
	}
	typ, err := intType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	y, err := readVarnode(l, op.Inputs[1], typ)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	instr := build(b.AllocateInstruction(), x, y).Insert(b)
	_, extras := instr.Returns()
	if len(extras) != 1 {
		l.status.setError(fmt.Errorf("op %v: overflow instruction produced no flag", op.Opcode))
		return
	}
	if err := writeVarnode(l, *op.Output, extras[0]); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerInt2Float(l *lowering, op Op) {
	if op.Output == nil || len(op.Inputs) != 1 {
		l.status.setError(fmt.Errorf("op FLOAT_INT2FLOAT: expected 1 input and an output"))
		return
	}
	srcTyp, err := intType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	dstTyp, err := floatType(*op.Output)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], srcTyp)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	result := b.AllocateInstruction().AsFcvtFromInt(x, dstTyp).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

// lowerFloat2Float resolves the FLOAT_FLOAT2FLOAT width ambiguity flagged
// in spec.md §9 by honoring the output varnode's declared size via
// ir.FloatTypeForSize, promoting or demoting as the relative widths
// require, rather than treating the op as a same-width pass-through.
func lowerFloat2Float(l *lowering, op Op) {
	if op.Output == nil || len(op.Inputs) != 1 {
		l.status.setError(fmt.Errorf("op FLOAT_FLOAT2FLOAT: expected 1 input and an output"))
		return
	}
	srcTyp, err := floatType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	dstTyp, err := floatType(*op.Output)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], srcTyp)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	var result ir.Value
	b := l.b()
	switch {
	case dstTyp == srcTyp:
		result = x
	case dstTyp.Bits() > srcTyp.Bits():
		result = b.AllocateInstruction().AsFpromote(x, dstTyp).Insert(b).Return()
	default:
		result = b.AllocateInstruction().AsFdemote(x, dstTyp).Insert(b).Return()
	}
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerFloatTrunc(l *lowering, op Op) {
	if op.Output == nil || len(op.Inputs) != 1 {
		l.status.setError(fmt.Errorf("op FLOAT_TRUNC: expected 1 input and an output"))
		return
	}
	srcTyp, err := floatType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	dstTyp, err := intType(*op.Output)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	x, err := readVarnode(l, op.Inputs[0], srcTyp)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	result := b.AllocateInstruction().AsFcvtToInt(x, dstTyp).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerIndirectLoad(l *lowering, op Op) {
	if op.Output == nil || len(op.Inputs) != 2 {
		l.status.setError(fmt.Errorf("op LOAD: expected a space-id input and an address input"))
		return
	}
	dstTyp, err := intType(*op.Output)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	addr, err := readVarnode(l, op.Inputs[1], l.arch.WordType())
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	mem := l.mem.load(l.b())
	result := l.intrinsics.LoadFromMemory(l.b(), dstTyp, mem, addr)
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func lowerIndirectStore(l *lowering, op Op) {
	if len(op.Inputs) != 3 {
		l.status.setError(fmt.Errorf("op STORE: expected a space-id, an address, and a value input"))
		return
	}
	valueTyp, err := intType(op.Inputs[2])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	addr, err := readVarnode(l, op.Inputs[1], l.arch.WordType())
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	value, err := readVarnode(l, op.Inputs[2], valueTyp)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	mem := l.mem.load(l.b())
	newMem := l.intrinsics.StoreToMemory(l.b(), value, mem, addr)
	l.mem.store(l.b(), newMem)
}

// lowerPiece implements PIECE: output = (hi << (lo.Size*8 bits)) | zext(lo),
// per spec.md §4.5.5. The shift amount is the low operand's width in bits;
// see DESIGN.md for the byte-vs-bit ambiguity this resolves.
func lowerPiece(l *lowering, op Op) {
	if op.Output == nil || len(op.Inputs) != 2 {
		l.status.setError(fmt.Errorf("op PIECE: expected 2 inputs and an output"))
		return
	}
	dstTyp, err := intType(*op.Output)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	hiTyp, err := intType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	loTyp, err := intType(op.Inputs[1])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	hi, err := readVarnode(l, op.Inputs[0], hiTyp)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	lo, err := readVarnode(l, op.Inputs[1], loTyp)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	hiWide := widen(b, hi, dstTyp)
	loWide := widen(b, lo, dstTyp)
	shiftAmt := b.AllocateInstruction().AsIconst(dstTyp, uint64(op.Inputs[1].Size*8)).Insert(b).Return()
	hiShifted := b.AllocateInstruction().AsIshl(hiWide, shiftAmt).Insert(b).Return()
	result := b.AllocateInstruction().AsBor(hiShifted, loWide).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

// lowerPtrAdd implements PTRADD(base, index, elem_size_const): output =
// base + index*elem_size, per spec.md §4.5.5. The element size is guaranteed
// constant by construction (it comes from the decoder's type-size table),
// so it is read directly off the varnode rather than through the IR.
func lowerPtrAdd(l *lowering, op Op) {
	if op.Output == nil || len(op.Inputs) != 3 {
		l.status.setError(fmt.Errorf("op PTRADD: expected base, index, and element-size inputs and an output"))
		return
	}
	if op.Inputs[2].Space != SpaceConst {
		l.status.setError(fmt.Errorf("op PTRADD: element-size operand must be a constant"))
		return
	}
	wordTyp := l.arch.WordType()
	base, err := readVarnode(l, op.Inputs[0], wordTyp)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	index, err := readVarnode(l, op.Inputs[1], wordTyp)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	elemSize := b.AllocateInstruction().AsIconst(wordTyp, op.Inputs[2].Offset).Insert(b).Return()
	scaled := b.AllocateInstruction().AsImul(index, elemSize).Insert(b).Return()
	result := b.AllocateInstruction().AsIadd(base, scaled).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

func widen(b ir.Builder, v ir.Value, dst ir.Type) ir.Value {
	if v.Type() == dst {
		return v
	}
	return b.AllocateInstruction().AsUExtend(v, dst).Insert(b).Return()
}

// lowerSubpiece implements SUBPIECE: output = truncate(input >> (Inputs[1]
// bytes of shift)), per spec.md §4.5.5.
func lowerSubpiece(l *lowering, op Op) {
	if op.Output == nil || len(op.Inputs) != 2 {
		l.status.setError(fmt.Errorf("op SUBPIECE: expected 2 inputs and an output"))
		return
	}
	srcTyp, err := intType(op.Inputs[0])
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	dstTyp, err := intType(*op.Output)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	if op.Inputs[1].Space != SpaceConst {
		l.status.setError(fmt.Errorf("op SUBPIECE: shift operand must be a constant"))
		return
	}
	x, err := readVarnode(l, op.Inputs[0], srcTyp)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	b := l.b()
	shiftBytes := op.Inputs[1].Offset
	var shifted ir.Value
	if shiftBytes == 0 {
		shifted = x
	} else {
		amt := b.AllocateInstruction().AsIconst(srcTyp, shiftBytes*8).Insert(b).Return()
		shifted = b.AllocateInstruction().AsUshr(x, amt).Insert(b).Return()
	}
	result := shifted
	if dstTyp != srcTyp {
		result = b.AllocateInstruction().AsIreduce(shifted, dstTyp).Insert(b).Return()
	}
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

// lowerMultiEqual implements MULTIEQUAL without tracking which predecessor
// block each input came from, per spec.md §9's accepted limitation: the
// inputs are read in the order the op lists them and handed to the IR's
// phi-like opcode as-is.
func lowerMultiEqual(l *lowering, op Op) {
	if op.Output == nil || len(op.Inputs) == 0 {
		l.status.setError(fmt.Errorf("op MULTIEQUAL: expected an output and at least one input"))
		return
	}
	dstTyp, err := intType(*op.Output)
	if err != nil {
		l.status.set(Unsupported)
		return
	}
	incoming := make([]ir.Value, 0, len(op.Inputs))
	for _, in := range op.Inputs {
		v, err := readVarnode(l, in, dstTyp)
		if err != nil {
			l.status.set(Unsupported)
			return
		}
		incoming = append(incoming, v)
	}
	b := l.b()
	result := b.AllocateInstruction().AsMultiEqual(dstTyp, incoming).Insert(b).Return()
	if err := writeVarnode(l, *op.Output, result); err != nil {
		l.status.set(Unsupported)
	}
}

// lowerCallOther dispatches a CALLOTHER to the user-op named by the table
// entry its first input indexes, per spec.md §4.5.7/§9.
func lowerCallOther(l *lowering, op Op) {
	if len(op.Inputs) == 0 || op.Inputs[0].Space != SpaceConst {
		l.status.setError(fmt.Errorf("op CALLOTHER: expected a constant user-op index as the first input"))
		return
	}
	idx := int(op.Inputs[0].Offset)
	if idx < 0 || idx >= len(l.userOps.Names) {
		l.status.set(Unsupported)
		return
	}
	name := l.userOps.Names[idx]
	handler, ok := l.userOps.Handlers[name]
	if !ok {
		l.status.set(Unsupported)
		return
	}
	status := handler(l, op)
	l.status.set(status)
}

// handleClaimEq implements the claim_eq user-op, spec.md §3/§4.3: its two
// arguments are the constant varnode previously folded into the p-code and
// the varnode it actually stands for. It records the substitution and
// emits no IR of its own.
func handleClaimEq(l *lowering, op Op) LiftStatus {
	if len(op.Inputs) != 3 {
		return LifterError
	}
	claimed := op.Inputs[1]
	actual := op.Inputs[2]
	if claimed.Space != SpaceConst {
		return LifterError
	}
	l.claims.addClaim(claimed, actual)
	return Lifted
}
