package ir

import "fmt"

// Opcode identifies the operation an Instruction performs. Naming mirrors
// the teacher ssa.Opcode set where the operation is the same (Iadd, Isub,
// Bnot, ...) and introduces new opcodes only for what p-code needs that a
// Wasm-shaped IR never does (checked-arithmetic overflow, an explicit
// multi-input phi, pointer load/store through a bare cell).
type Opcode uint32

const (
	OpcodeInvalid Opcode = iota

	// --- control flow ---

	// OpcodeJump unconditionally transfers control to blk.
	OpcodeJump
	// OpcodeBrnz transfers control to blk if v is nonzero, otherwise falls
	// through to the next instruction in program order.
	OpcodeBrnz
	// OpcodeReturn returns v (the memory pointer) from the function.
	OpcodeReturn

	// --- constants ---

	// OpcodeIconst materializes an integer constant of typ with bit
	// pattern u1.
	OpcodeIconst
	// OpcodeF32const materializes a 32-bit float constant.
	OpcodeF32const
	// OpcodeF64const materializes a 64-bit float constant.
	OpcodeF64const

	// --- integer arithmetic ---

	OpcodeIadd
	OpcodeIsub
	OpcodeImul
	OpcodeUdiv
	OpcodeSdiv
	OpcodeUrem
	OpcodeSrem
	OpcodeBand
	OpcodeBor
	OpcodeBxor
	OpcodeBnot  // bitwise NOT (INT_NEGATE)
	OpcodeIneg  // two's complement negate (INT_2COMP)
	OpcodeIshl  // logical left shift
	OpcodeUshr  // logical right shift
	OpcodeSshr  // arithmetic right shift
	OpcodePopcnt
	OpcodeIcmp // result is always TypeI8, zero/one

	// --- checked integer arithmetic, two results: (result, overflow_i8) ---

	OpcodeUAddOverflow
	OpcodeSAddOverflow
	OpcodeSSubOverflow

	// --- conversions ---

	// OpcodeIreduce truncates v to a narrower integer Type.
	OpcodeIreduce
	// OpcodeUExtend zero-extends v to a wider integer Type.
	OpcodeUExtend
	// OpcodeSExtend sign-extends v to a wider integer Type.
	OpcodeSExtend

	// --- float arithmetic ---

	OpcodeFadd
	OpcodeFsub
	OpcodeFmul
	OpcodeFdiv
	OpcodeFneg
	OpcodeFabs
	OpcodeSqrt
	OpcodeCeil
	OpcodeFloor
	OpcodeNearest
	OpcodeFcmp // result is always TypeI8, zero/one

	// OpcodeFcvtFromInt converts a signed integer to a float.
	OpcodeFcvtFromInt
	// OpcodeFcvtToInt truncates a float to a signed integer.
	OpcodeFcvtToInt
	// OpcodeFpromote widens a float to a larger float Type.
	OpcodeFpromote
	// OpcodeFdemote narrows a float to a smaller float Type.
	OpcodeFdemote

	// --- selection / phi ---

	// OpcodeSelect picks x if c is nonzero, else y.
	OpcodeSelect
	// OpcodeMultiEqual is the MULTIEQUAL/phi lowering: its rValue takes on
	// one of vs, with no block provenance tracked (see DESIGN.md's
	// MULTIEQUAL open question).
	OpcodeMultiEqual

	// --- memory / calls ---

	// OpcodeLoad dereferences a bare pointer Value (a register cell or
	// scratch cell address) as typ.
	OpcodeLoad
	// OpcodeStore writes v through a bare pointer Value.
	OpcodeStore
	// OpcodeCall invokes an external FuncRef (an intrinsics-table entry)
	// with args, producing zero or more typed results.
	OpcodeCall
)

// IntegerCmpCond is the predicate for OpcodeIcmp.
type IntegerCmpCond byte

const (
	IntEqual IntegerCmpCond = iota
	IntNotEqual
	IntLessThanUnsigned
	IntLessThanSigned
	IntLessThanOrEqualUnsigned
	IntLessThanOrEqualSigned
)

// String implements fmt.Stringer.
func (c IntegerCmpCond) String() string {
	switch c {
	case IntEqual:
		return "eq"
	case IntNotEqual:
		return "ne"
	case IntLessThanUnsigned:
		return "ult"
	case IntLessThanSigned:
		return "slt"
	case IntLessThanOrEqualUnsigned:
		return "ule"
	case IntLessThanOrEqualSigned:
		return "sle"
	default:
		panic(int(c))
	}
}

// FloatCmpCond is the predicate for OpcodeFcmp, all ordered comparisons.
type FloatCmpCond byte

const (
	FloatEqual FloatCmpCond = iota
	FloatNotEqual
	FloatLessThan
	FloatLessThanOrEqual
)

// String implements fmt.Stringer.
func (c FloatCmpCond) String() string {
	switch c {
	case FloatEqual:
		return "eq"
	case FloatNotEqual:
		return "ne"
	case FloatLessThan:
		return "lt"
	case FloatLessThanOrEqual:
		return "le"
	default:
		panic(int(c))
	}
}

// Instruction is the flattened any-opcode representation used throughout
// the target IR, following the teacher's "one struct, switch on opcode"
// idiom rather than a type hierarchy per opcode.
type Instruction struct {
	opcode     Opcode
	u1         uint64 // iconst/fconst bit pattern, cmp predicate
	v, v2, v3  Value
	vs         []Value
	typ        Type // result type for consts / conversions
	blk        BasicBlock
	funcRef    FuncRef
	resultTyps []Type

	rValue  Value
	rValues []Value

	prev, next *Instruction
}

func (i *Instruction) reset() {
	*i = Instruction{}
	i.v, i.v2, i.v3 = ValueInvalid, ValueInvalid, ValueInvalid
	i.rValue = ValueInvalid
}

// Opcode returns the opcode of this instruction.
func (i *Instruction) Opcode() Opcode { return i.opcode }

// Return returns the first (often only) Value produced by this instruction.
func (i *Instruction) Return() Value { return i.rValue }

// Returns returns all Values produced by this instruction.
func (i *Instruction) Returns() (first Value, rest []Value) { return i.rValue, i.rValues }

// Next returns the next instruction in program order within its block.
func (i *Instruction) Next() *Instruction { return i.next }

// Prev returns the previous instruction in program order within its block.
func (i *Instruction) Prev() *Instruction { return i.prev }

// IsTerminator returns true for instructions that end a basic block.
func (i *Instruction) IsTerminator() bool {
	switch i.opcode {
	case OpcodeJump, OpcodeBrnz, OpcodeReturn:
		return true
	default:
		return false
	}
}

// --- As* constructors. Each returns i so callers can chain Insert/Return,
// e.g. builder.AllocateInstruction().AsIadd(x, y).Insert(b).Return(). ---

func (i *Instruction) AsIconst(typ Type, bits uint64) *Instruction {
	i.opcode, i.typ, i.u1 = OpcodeIconst, typ, bits
	return i
}

func (i *Instruction) AsF32const(f float32) *Instruction {
	i.opcode, i.typ = OpcodeF32const, TypeF32
	i.u1 = uint64(f32bits(f))
	return i
}

func (i *Instruction) AsF64const(f float64) *Instruction {
	i.opcode, i.typ = OpcodeF64const, TypeF64
	i.u1 = f64bits(f)
	return i
}

func binary(i *Instruction, op Opcode, x, y Value) *Instruction {
	i.opcode, i.v, i.v2 = op, x, y
	return i
}

func unary(i *Instruction, op Opcode, x Value) *Instruction {
	i.opcode, i.v = op, x
	return i
}

func (i *Instruction) AsIadd(x, y Value) *Instruction { return binary(i, OpcodeIadd, x, y) }
func (i *Instruction) AsIsub(x, y Value) *Instruction { return binary(i, OpcodeIsub, x, y) }
func (i *Instruction) AsImul(x, y Value) *Instruction { return binary(i, OpcodeImul, x, y) }
func (i *Instruction) AsUdiv(x, y Value) *Instruction { return binary(i, OpcodeUdiv, x, y) }
func (i *Instruction) AsSdiv(x, y Value) *Instruction { return binary(i, OpcodeSdiv, x, y) }
func (i *Instruction) AsUrem(x, y Value) *Instruction { return binary(i, OpcodeUrem, x, y) }
func (i *Instruction) AsSrem(x, y Value) *Instruction { return binary(i, OpcodeSrem, x, y) }
func (i *Instruction) AsBand(x, y Value) *Instruction { return binary(i, OpcodeBand, x, y) }
func (i *Instruction) AsBor(x, y Value) *Instruction  { return binary(i, OpcodeBor, x, y) }
func (i *Instruction) AsBxor(x, y Value) *Instruction { return binary(i, OpcodeBxor, x, y) }
func (i *Instruction) AsIshl(x, y Value) *Instruction { return binary(i, OpcodeIshl, x, y) }
func (i *Instruction) AsUshr(x, y Value) *Instruction { return binary(i, OpcodeUshr, x, y) }
func (i *Instruction) AsSshr(x, y Value) *Instruction { return binary(i, OpcodeSshr, x, y) }

func (i *Instruction) AsBnot(x Value) *Instruction   { return unary(i, OpcodeBnot, x) }
func (i *Instruction) AsIneg(x Value) *Instruction   { return unary(i, OpcodeIneg, x) }
func (i *Instruction) AsPopcnt(x Value) *Instruction { return unary(i, OpcodePopcnt, x) }

func (i *Instruction) AsIcmp(x, y Value, c IntegerCmpCond) *Instruction {
	i.opcode, i.v, i.v2, i.u1 = OpcodeIcmp, x, y, uint64(c)
	return i
}

func (i *Instruction) AsUAddOverflow(x, y Value) *Instruction {
	return binary(i, OpcodeUAddOverflow, x, y)
}
func (i *Instruction) AsSAddOverflow(x, y Value) *Instruction {
	return binary(i, OpcodeSAddOverflow, x, y)
}
func (i *Instruction) AsSSubOverflow(x, y Value) *Instruction {
	return binary(i, OpcodeSSubOverflow, x, y)
}

func (i *Instruction) AsIreduce(x Value, dst Type) *Instruction {
	i.opcode, i.v, i.typ = OpcodeIreduce, x, dst
	return i
}

func (i *Instruction) AsUExtend(x Value, dst Type) *Instruction {
	i.opcode, i.v, i.typ = OpcodeUExtend, x, dst
	return i
}

func (i *Instruction) AsSExtend(x Value, dst Type) *Instruction {
	i.opcode, i.v, i.typ = OpcodeSExtend, x, dst
	return i
}

func (i *Instruction) AsFadd(x, y Value) *Instruction { return binary(i, OpcodeFadd, x, y) }
func (i *Instruction) AsFsub(x, y Value) *Instruction { return binary(i, OpcodeFsub, x, y) }
func (i *Instruction) AsFmul(x, y Value) *Instruction { return binary(i, OpcodeFmul, x, y) }
func (i *Instruction) AsFdiv(x, y Value) *Instruction { return binary(i, OpcodeFdiv, x, y) }

func (i *Instruction) AsFneg(x Value) *Instruction  { return unary(i, OpcodeFneg, x) }
func (i *Instruction) AsFabs(x Value) *Instruction  { return unary(i, OpcodeFabs, x) }
func (i *Instruction) AsSqrt(x Value) *Instruction  { return unary(i, OpcodeSqrt, x) }
func (i *Instruction) AsCeil(x Value) *Instruction  { return unary(i, OpcodeCeil, x) }
func (i *Instruction) AsFloor(x Value) *Instruction { return unary(i, OpcodeFloor, x) }
func (i *Instruction) AsNearest(x Value) *Instruction { return unary(i, OpcodeNearest, x) }

func (i *Instruction) AsFcmp(x, y Value, c FloatCmpCond) *Instruction {
	i.opcode, i.v, i.v2, i.u1 = OpcodeFcmp, x, y, uint64(c)
	return i
}

func (i *Instruction) AsFcvtFromInt(x Value, dst Type) *Instruction {
	i.opcode, i.v, i.typ = OpcodeFcvtFromInt, x, dst
	return i
}

func (i *Instruction) AsFcvtToInt(x Value, dst Type) *Instruction {
	i.opcode, i.v, i.typ = OpcodeFcvtToInt, x, dst
	return i
}

func (i *Instruction) AsFpromote(x Value, dst Type) *Instruction {
	i.opcode, i.v, i.typ = OpcodeFpromote, x, dst
	return i
}

func (i *Instruction) AsFdemote(x Value, dst Type) *Instruction {
	i.opcode, i.v, i.typ = OpcodeFdemote, x, dst
	return i
}

func (i *Instruction) AsSelect(c, x, y Value) *Instruction {
	i.opcode, i.v, i.v2, i.v3 = OpcodeSelect, c, x, y
	return i
}

func (i *Instruction) AsMultiEqual(typ Type, incoming []Value) *Instruction {
	i.opcode, i.typ, i.vs = OpcodeMultiEqual, typ, incoming
	return i
}

func (i *Instruction) AsLoad(ptr Value, typ Type) *Instruction {
	i.opcode, i.v, i.typ = OpcodeLoad, ptr, typ
	return i
}

func (i *Instruction) AsStore(ptr, value Value) *Instruction {
	i.opcode, i.v, i.v2 = OpcodeStore, ptr, value
	return i
}

func (i *Instruction) AsCall(ref FuncRef, args []Value, resultTyps []Type) *Instruction {
	i.opcode, i.funcRef, i.vs, i.resultTyps = OpcodeCall, ref, args, resultTyps
	return i
}

func (i *Instruction) AsJump(target BasicBlock) *Instruction {
	i.opcode, i.blk = OpcodeJump, target
	return i
}

func (i *Instruction) AsBrnz(cond Value, target BasicBlock) *Instruction {
	i.opcode, i.v, i.blk = OpcodeBrnz, cond, target
	return i
}

func (i *Instruction) AsReturn(v Value) *Instruction {
	i.opcode, i.v = OpcodeReturn, v
	return i
}

// Insert appends this instruction to the builder's current block and
// allocates its result Value(s), then returns itself for chaining into
// Return()/Returns().
func (i *Instruction) Insert(b Builder) *Instruction {
	b.InsertInstruction(i)
	return i
}

// Arg returns the first operand.
func (i *Instruction) Arg() Value { return i.v }

// Arg2 returns the first two operands.
func (i *Instruction) Arg2() (Value, Value) { return i.v, i.v2 }

// Arg3 returns the first three operands.
func (i *Instruction) Arg3() (Value, Value, Value) { return i.v, i.v2, i.v3 }

// Args returns the variadic operand list (MULTIEQUAL inputs, Call args).
func (i *Instruction) Args() []Value { return i.vs }

// IcmpData returns the operands and predicate of an Icmp instruction.
func (i *Instruction) IcmpData() (Value, Value, IntegerCmpCond) {
	return i.v, i.v2, IntegerCmpCond(i.u1)
}

// FcmpData returns the operands and predicate of an Fcmp instruction.
func (i *Instruction) FcmpData() (Value, Value, FloatCmpCond) {
	return i.v, i.v2, FloatCmpCond(i.u1)
}

// ConstData returns the declared Type and raw bit pattern of a const
// instruction.
func (i *Instruction) ConstData() (Type, uint64) { return i.typ, i.u1 }

// BranchTarget returns the target block of a Jump/Brnz instruction.
func (i *Instruction) BranchTarget() BasicBlock { return i.blk }

// CallData returns the callee and arguments of a Call instruction.
func (i *Instruction) CallData() (FuncRef, []Value, []Type) {
	return i.funcRef, i.vs, i.resultTyps
}

// Format returns a debug string for this instruction.
func (i *Instruction) Format() string {
	switch i.opcode {
	case OpcodeIconst:
		return fmt.Sprintf("%s = iconst_%s 0x%x", i.rValue, i.typ, i.u1)
	case OpcodeF32const, OpcodeF64const:
		return fmt.Sprintf("%s = fconst 0x%x", i.rValue, i.u1)
	case OpcodeJump:
		return fmt.Sprintf("jump %s", i.blk.Name())
	case OpcodeBrnz:
		return fmt.Sprintf("brnz %s, %s", i.v, i.blk.Name())
	case OpcodeReturn:
		return fmt.Sprintf("return %s", i.v)
	case OpcodeCall:
		return fmt.Sprintf("%s = call %s", i.rValue, i.funcRef.Name)
	default:
		return fmt.Sprintf("%s = %d %s, %s", i.rValue, i.opcode, i.v, i.v2)
	}
}
