package pcodetest

import (
	"fmt"
	"math"
	"strings"

	"github.com/Colton1skees/remill/ir"
)

// State is the flat, byte-addressable world a lifted function runs
// against: the register/scratch cell space Load/Store operate on, and the
// separate RAM space the memory intrinsics operate on. The register file
// is a fixed 256-byte array; addresses outside it (synthetic scratch
// cells, the branch-taken/next-pc outputs) and RAM are sparse byte maps,
// so those never need a preallocated backing array.
type State struct {
	Cells [256]byte      // register file, indexed directly by byte offset
	Scrap map[int64]byte // unique-arena scratch cells and register fallbacks
	RAM   map[int64]byte
}

// NewState returns an empty State.
func NewState() *State {
	return &State{Scrap: map[int64]byte{}, RAM: map[int64]byte{}}
}

func (s *State) readCell(addr int64, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		v |= uint64(s.byteAt(addr+int64(i))) << (8 * i)
	}
	return v
}

func (s *State) writeCell(addr int64, width int, value uint64) {
	for i := 0; i < width; i++ {
		s.setByteAt(addr+int64(i), byte(value>>(8*i)))
	}
}

func (s *State) byteAt(addr int64) byte {
	if addr >= 0 && int(addr) < len(s.Cells) {
		return s.Cells[addr]
	}
	return s.Scrap[addr]
}

func (s *State) setByteAt(addr int64, b byte) {
	if addr >= 0 && int(addr) < len(s.Cells) {
		s.Cells[addr] = b
		return
	}
	s.Scrap[addr] = b
}

func (s *State) readRAM(addr int64, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		v |= uint64(s.RAM[addr+int64(i)]) << (8 * i)
	}
	return v
}

func (s *State) writeRAM(addr int64, width int, value uint64) {
	for i := 0; i < width; i++ {
		s.RAM[addr+int64(i)] = byte(value >> (8 * i))
	}
}

// Result is the outcome of interpreting one lifted function.
type Result struct {
	Memory      uint64
	BranchTaken uint8
	NextPC      uint64
}

// Interpret runs fn against state, starting with statePtr/initialMemory as
// the first two parameters and interpreter-owned scratch cells as the
// branch-taken/next-pc output pointers, per the (state_ptr, memory_ptr,
// branch_taken_ref, next_pc_ref) -> memory_ptr signature in spec.md §3.
// It walks blocks by following Jump/Brnz to their targets, evaluating every
// instruction against a ValueID -> raw-bits table, until it reaches Return.
func Interpret(fn *ir.Function, state *State) (Result, error) {
	const (
		statePtr        = 0
		branchTakenAddr = int64(1) << 48
		nextPCAddr      = branchTakenAddr + 8
	)

	vals := map[ir.ValueID]uint64{}
	vals[fn.Param(0).ID()] = statePtr
	vals[fn.Param(1).ID()] = 0 // initial memory token, opaque
	vals[fn.Param(2).ID()] = uint64(branchTakenAddr)
	vals[fn.Param(3).ID()] = uint64(nextPCAddr)

	blocksByID := map[ir.BasicBlockID]ir.BasicBlock{}
	for _, blk := range fn.Blocks() {
		blocksByID[blk.ID()] = blk
	}

	cur := fn.EntryBlock()
	if cur == nil {
		return Result{}, fmt.Errorf("pcodetest: function %s has no entry block", fn.Name)
	}

	for {
		var next ir.BasicBlock
		returned := false
		var returnValue uint64

	instrs:
		for instr := cur.Root(); instr != nil; instr = instr.Next() {
			switch instr.Opcode() {
			case ir.OpcodeJump:
				next = instr.BranchTarget()
				break instrs
			case ir.OpcodeBrnz:
				cond := vals[instr.Arg().ID()]
				if cond != 0 {
					next = instr.BranchTarget()
					break instrs
				}
			case ir.OpcodeReturn:
				returnValue = vals[instr.Arg().ID()]
				returned = true
				break instrs
			default:
				evalValueInstruction(instr, vals, state)
			}
		}

		if returned {
			return Result{
				Memory:      returnValue,
				BranchTaken: byte(state.readCell(branchTakenAddr, 1)),
				NextPC:      state.readCell(nextPCAddr, 8),
			}, nil
		}
		if next == nil {
			return Result{}, fmt.Errorf("pcodetest: block %s fell off the end without a terminator", cur.Name())
		}
		cur = blocksByID[next.ID()]
	}
}

func evalValueInstruction(instr *ir.Instruction, vals map[ir.ValueID]uint64, state *State) {
	rv, extras := instr.Returns()

	switch instr.Opcode() {
	case ir.OpcodeIconst, ir.OpcodeF32const, ir.OpcodeF64const:
		_, bits := instr.ConstData()
		vals[rv.ID()] = bits

	case ir.OpcodeIadd:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(vals[x.ID()]+vals[y.ID()], rv.Type())
	case ir.OpcodeIsub:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(vals[x.ID()]-vals[y.ID()], rv.Type())
	case ir.OpcodeImul:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(vals[x.ID()]*vals[y.ID()], rv.Type())
	case ir.OpcodeUdiv:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(vals[x.ID()]/vals[y.ID()], rv.Type())
	case ir.OpcodeSdiv:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(uint64(signed(vals[x.ID()], x.Type())/signed(vals[y.ID()], y.Type())), rv.Type())
	case ir.OpcodeUrem:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(vals[x.ID()]%vals[y.ID()], rv.Type())
	case ir.OpcodeSrem:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(uint64(signed(vals[x.ID()], x.Type())%signed(vals[y.ID()], y.Type())), rv.Type())
	case ir.OpcodeBand:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(vals[x.ID()]&vals[y.ID()], rv.Type())
	case ir.OpcodeBor:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(vals[x.ID()]|vals[y.ID()], rv.Type())
	case ir.OpcodeBxor:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(vals[x.ID()]^vals[y.ID()], rv.Type())
	case ir.OpcodeIshl:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(vals[x.ID()]<<vals[y.ID()], rv.Type())
	case ir.OpcodeUshr:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(vals[x.ID()]>>vals[y.ID()], rv.Type())
	case ir.OpcodeSshr:
		x, y := instr.Arg2()
		vals[rv.ID()] = mask(uint64(signed(vals[x.ID()], x.Type())>>vals[y.ID()]), rv.Type())

	case ir.OpcodeBnot:
		x := instr.Arg()
		vals[rv.ID()] = mask(^vals[x.ID()], rv.Type())
	case ir.OpcodeIneg:
		x := instr.Arg()
		vals[rv.ID()] = mask(uint64(-int64(vals[x.ID()])), rv.Type())
	case ir.OpcodePopcnt:
		x := instr.Arg()
		vals[rv.ID()] = uint64(popcount(vals[x.ID()]))

	case ir.OpcodeIcmp:
		x, y, cond := instr.IcmpData()
		vals[rv.ID()] = boolToU64(evalIcmp(cond, vals[x.ID()], vals[y.ID()], x.Type()))

	case ir.OpcodeUAddOverflow:
		x, y := instr.Arg2()
		sum := vals[x.ID()] + vals[y.ID()]
		vals[rv.ID()] = mask(sum, rv.Type())
		vals[extras[0].ID()] = boolToU64(mask(sum, rv.Type()) < mask(vals[x.ID()], rv.Type()))
	case ir.OpcodeSAddOverflow:
		x, y := instr.Arg2()
		xs, ys := signed(vals[x.ID()], x.Type()), signed(vals[y.ID()], y.Type())
		sum := xs + ys
		vals[rv.ID()] = mask(uint64(sum), rv.Type())
		overflowed := (xs > 0 && ys > 0 && sum < 0) || (xs < 0 && ys < 0 && sum > 0)
		vals[extras[0].ID()] = boolToU64(overflowed)
	case ir.OpcodeSSubOverflow:
		x, y := instr.Arg2()
		xs, ys := signed(vals[x.ID()], x.Type()), signed(vals[y.ID()], y.Type())
		diff := xs - ys
		vals[rv.ID()] = mask(uint64(diff), rv.Type())
		overflowed := (xs >= 0 && ys < 0 && diff < 0) || (xs < 0 && ys >= 0 && diff >= 0)
		vals[extras[0].ID()] = boolToU64(overflowed)

	case ir.OpcodeIreduce:
		x := instr.Arg()
		vals[rv.ID()] = mask(vals[x.ID()], rv.Type())
	case ir.OpcodeUExtend:
		x := instr.Arg()
		vals[rv.ID()] = mask(vals[x.ID()], rv.Type())
	case ir.OpcodeSExtend:
		x := instr.Arg()
		vals[rv.ID()] = mask(uint64(signed(vals[x.ID()], x.Type())), rv.Type())

	case ir.OpcodeFadd, ir.OpcodeFsub, ir.OpcodeFmul, ir.OpcodeFdiv:
		x, y := instr.Arg2()
		vals[rv.ID()] = evalFloatBinary(instr.Opcode(), vals[x.ID()], vals[y.ID()], x.Type())
	case ir.OpcodeFneg, ir.OpcodeFabs, ir.OpcodeSqrt, ir.OpcodeCeil, ir.OpcodeFloor, ir.OpcodeNearest:
		x := instr.Arg()
		vals[rv.ID()] = evalFloatUnary(instr.Opcode(), vals[x.ID()], x.Type())
	case ir.OpcodeFcmp:
		x, y, cond := instr.FcmpData()
		vals[rv.ID()] = boolToU64(evalFcmp(cond, vals[x.ID()], vals[y.ID()], x.Type()))
	case ir.OpcodeFcvtFromInt:
		x := instr.Arg()
		vals[rv.ID()] = floatBitsFromInt(signed(vals[x.ID()], x.Type()), rv.Type())
	case ir.OpcodeFcvtToInt:
		x := instr.Arg()
		vals[rv.ID()] = mask(uint64(intFromFloatBits(vals[x.ID()], x.Type())), rv.Type())
	case ir.OpcodeFpromote:
		x := instr.Arg()
		vals[rv.ID()] = floatBitsFromFloat(vals[x.ID()], x.Type(), rv.Type())
	case ir.OpcodeFdemote:
		x := instr.Arg()
		vals[rv.ID()] = floatBitsFromFloat(vals[x.ID()], x.Type(), rv.Type())

	case ir.OpcodeSelect:
		c, x, y := instr.Arg3()
		if vals[c.ID()] != 0 {
			vals[rv.ID()] = vals[x.ID()]
		} else {
			vals[rv.ID()] = vals[y.ID()]
		}
	case ir.OpcodeMultiEqual:
		// No block provenance is tracked (spec.md §9's accepted MULTIEQUAL
		// limitation); the interpreter takes the first incoming value.
		args := instr.Args()
		if len(args) > 0 {
			vals[rv.ID()] = vals[args[0].ID()]
		}

	case ir.OpcodeLoad:
		ptr := instr.Arg()
		vals[rv.ID()] = state.readCell(int64(vals[ptr.ID()]), rv.Type().Size())
	case ir.OpcodeStore:
		ptr, value := instr.Arg2()
		state.writeCell(int64(vals[ptr.ID()]), value.Type().Size(), vals[value.ID()])

	case ir.OpcodeCall:
		evalCall(instr, vals, state)

	default:
		panic(fmt.Sprintf("pcodetest: unhandled opcode %d", instr.Opcode()))
	}
}

func evalCall(instr *ir.Instruction, vals map[ir.ValueID]uint64, state *State) {
	ref, args, resultTyps := instr.CallData()
	rv, _ := instr.Returns()

	switch {
	case strings.HasPrefix(ref.Name, "__remill_read_memory_"):
		index := args[1]
		width := resultTyps[0].Size()
		vals[rv.ID()] = state.readRAM(int64(vals[index.ID()]), width)
	case strings.HasPrefix(ref.Name, "__remill_write_memory_"):
		value, index := args[0], args[2]
		state.writeRAM(int64(vals[index.ID()]), value.Type().Size(), vals[value.ID()])
		vals[rv.ID()] = vals[args[1].ID()] + 1 // new memory token
	default:
		panic("pcodetest: unknown intrinsic " + ref.Name)
	}
}

func mask(v uint64, typ ir.Type) uint64 {
	bits := typ.Bits()
	if bits >= 64 {
		return v
	}
	return v & ((uint64(1) << bits) - 1)
}

func signed(v uint64, typ ir.Type) int64 {
	bits := typ.Bits()
	if bits >= 64 {
		return int64(v)
	}
	signBit := uint64(1) << (bits - 1)
	if v&signBit != 0 {
		return int64(v | ^((uint64(1) << bits) - 1))
	}
	return int64(v)
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func popcount(v uint64) int {
	n := 0
	for v != 0 {
		n += int(v & 1)
		v >>= 1
	}
	return n
}

func evalIcmp(cond ir.IntegerCmpCond, x, y uint64, typ ir.Type) bool {
	switch cond {
	case ir.IntEqual:
		return x == y
	case ir.IntNotEqual:
		return x != y
	case ir.IntLessThanUnsigned:
		return mask(x, typ) < mask(y, typ)
	case ir.IntLessThanSigned:
		return signed(x, typ) < signed(y, typ)
	case ir.IntLessThanOrEqualUnsigned:
		return mask(x, typ) <= mask(y, typ)
	case ir.IntLessThanOrEqualSigned:
		return signed(x, typ) <= signed(y, typ)
	default:
		panic(fmt.Sprintf("pcodetest: unhandled icmp predicate %d", cond))
	}
}

func asFloat(bits uint64, typ ir.Type) float64 {
	if typ == ir.TypeF32 {
		return float64(math.Float32frombits(uint32(bits)))
	}
	return math.Float64frombits(bits)
}

func fromFloat(f float64, typ ir.Type) uint64 {
	if typ == ir.TypeF32 {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}

func evalFloatBinary(op ir.Opcode, xBits, yBits uint64, typ ir.Type) uint64 {
	x, y := asFloat(xBits, typ), asFloat(yBits, typ)
	var r float64
	switch op {
	case ir.OpcodeFadd:
		r = x + y
	case ir.OpcodeFsub:
		r = x - y
	case ir.OpcodeFmul:
		r = x * y
	case ir.OpcodeFdiv:
		r = x / y
	}
	return fromFloat(r, typ)
}

func evalFloatUnary(op ir.Opcode, xBits uint64, typ ir.Type) uint64 {
	x := asFloat(xBits, typ)
	var r float64
	switch op {
	case ir.OpcodeFneg:
		r = -x
	case ir.OpcodeFabs:
		r = math.Abs(x)
	case ir.OpcodeSqrt:
		r = math.Sqrt(x)
	case ir.OpcodeCeil:
		r = math.Ceil(x)
	case ir.OpcodeFloor:
		r = math.Floor(x)
	case ir.OpcodeNearest:
		r = math.RoundToEven(x)
	}
	return fromFloat(r, typ)
}

func evalFcmp(cond ir.FloatCmpCond, xBits, yBits uint64, typ ir.Type) bool {
	x, y := asFloat(xBits, typ), asFloat(yBits, typ)
	switch cond {
	case ir.FloatEqual:
		return x == y
	case ir.FloatNotEqual:
		return x != y
	case ir.FloatLessThan:
		return x < y
	case ir.FloatLessThanOrEqual:
		return x <= y
	default:
		panic(fmt.Sprintf("pcodetest: unhandled fcmp predicate %d", cond))
	}
}

func floatBitsFromInt(v int64, dst ir.Type) uint64 {
	return fromFloat(float64(v), dst)
}

func intFromFloatBits(bits uint64, src ir.Type) int64 {
	return int64(asFloat(bits, src))
}

func floatBitsFromFloat(bits uint64, src, dst ir.Type) uint64 {
	return fromFloat(asFloat(bits, src), dst)
}
