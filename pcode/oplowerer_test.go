package pcode_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Colton1skees/remill/ir"
	"github.com/Colton1skees/remill/pcode"
	"github.com/Colton1skees/remill/pcodetest"
)

func liftSingle(t *testing.T, op pcode.Op) *pcodetest.State {
	t.Helper()
	arch, mem, userOps := newHarness()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: []pcode.Op{op}}, ir.NewModule(), arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	_, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	return state
}

func TestLift_Subpiece(t *testing.T) {
	arch, mem, userOps := newHarness()
	ops := []pcode.Op{
		{Opcode: pcode.OpSubpiece, Seq: 0,
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 4},
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceRegister, Offset: 8, Size: 8},
				{Space: pcode.SpaceConst, Offset: 4, Size: 1},
			}},
	}
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	putU64(state, 8, 0x123456789abcdef0)
	_, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	var got uint32
	for i := 0; i < 4; i++ {
		got |= uint32(state.Cells[i]) << (8 * i)
	}
	require.Equal(t, uint32(0x12345678), got)
}

func TestLift_Int2Comp(t *testing.T) {
	state := liftSingle(t, pcode.Op{Opcode: pcode.OpInt2Comp, Seq: 0,
		Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 8},
		Inputs: []pcode.Varnode{{Space: pcode.SpaceConst, Offset: 5, Size: 8}},
	})
	require.Equal(t, uint64(0xfffffffffffffffb), getU64(state, 0))
}

func TestLift_Popcount(t *testing.T) {
	ops := pcode.Op{Opcode: pcode.OpPopcount, Seq: 0,
		Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 8},
		Inputs: []pcode.Varnode{{Space: pcode.SpaceConst, Offset: 0xff, Size: 8}},
	}
	state := liftSingle(t, ops)
	require.Equal(t, uint64(8), getU64(state, 0))
}

func TestLift_Popcount_NarrowerOutput(t *testing.T) {
	// popcount of an 8-byte value into a 1-byte output varnode: the count
	// must be fit to the output's width, not left at the input's.
	ops := pcode.Op{Opcode: pcode.OpPopcount, Seq: 0,
		Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 1},
		Inputs: []pcode.Varnode{{Space: pcode.SpaceConst, Offset: 0xffffffffffffffff, Size: 8}},
	}
	state := liftSingle(t, ops)
	require.Equal(t, byte(64), state.Cells[0])
	require.Equal(t, byte(0), state.Cells[1])
}

func TestLift_BoolAnd(t *testing.T) {
	ops := pcode.Op{Opcode: pcode.OpBoolAnd, Seq: 0,
		Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 1},
		Inputs: []pcode.Varnode{
			{Space: pcode.SpaceConst, Offset: 1, Size: 1},
			{Space: pcode.SpaceConst, Offset: 0, Size: 1},
		},
	}
	state := liftSingle(t, ops)
	require.Equal(t, byte(0), state.Cells[0])
}

func TestLift_IntSLess(t *testing.T) {
	// -1 (as i64) is signed-less-than 1, but not unsigned-less-than 1.
	ops := pcode.Op{Opcode: pcode.OpIntSLess, Seq: 0,
		Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 1},
		Inputs: []pcode.Varnode{
			{Space: pcode.SpaceRegister, Offset: 8, Size: 8},
			{Space: pcode.SpaceConst, Offset: 1, Size: 8},
		},
	}
	arch, mem, userOps := newHarness()
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: []pcode.Op{ops}}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)
	state := pcodetest.NewState()
	putU64(state, 8, 0xffffffffffffffff)
	_, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, byte(1), state.Cells[0])
}

func TestLift_FloatAddAndFcmp(t *testing.T) {
	arch, mem, userOps := newHarness()
	ops := []pcode.Op{
		{Opcode: pcode.OpFloatAdd, Seq: 0,
			Output: &pcode.Varnode{Space: pcode.SpaceUnique, Offset: 0, Size: 4},
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceRegister, Offset: 0, Size: 4},
				{Space: pcode.SpaceRegister, Offset: 8, Size: 4},
			}},
		{Opcode: pcode.OpFloatLess, Seq: 1,
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 16, Size: 1},
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceRegister, Offset: 0, Size: 4},
				{Space: pcode.SpaceUnique, Offset: 0, Size: 4},
			}},
	}
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	putF32(state, 0, 1.5)
	putF32(state, 8, 2.5)
	_, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, byte(1), state.Cells[16])
}

func TestLift_FloatFloat2Float_Promote(t *testing.T) {
	arch, mem, userOps := newHarness()
	ops := []pcode.Op{
		{Opcode: pcode.OpFloatFloat2Float, Seq: 0,
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 8},
			Inputs: []pcode.Varnode{{Space: pcode.SpaceRegister, Offset: 8, Size: 4}}},
	}
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	putF32(state, 8, 3.25)
	_, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.InDelta(t, 3.25, math.Float64frombits(getU64(state, 0)), 1e-9)
}

func TestLift_PtrAdd(t *testing.T) {
	arch, mem, userOps := newHarness()
	ops := []pcode.Op{
		{Opcode: pcode.OpPtrAdd, Seq: 0,
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 8},
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceRegister, Offset: 8, Size: 8},  // base
				{Space: pcode.SpaceConst, Offset: 3, Size: 8},     // index
				{Space: pcode.SpaceConst, Offset: 8, Size: 8},     // element size
			}},
	}
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	putU64(state, 8, 0x1000)
	_, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1000+3*8), getU64(state, 0))
}

func TestLift_LoadStore(t *testing.T) {
	arch, mem, userOps := newHarness()
	ops := []pcode.Op{
		{Opcode: pcode.OpStore, Seq: 0,
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceConst, Offset: 0, Size: 8}, // space id, ignored
				{Space: pcode.SpaceConst, Offset: 0x500, Size: 8},
				{Space: pcode.SpaceConst, Offset: 77, Size: 8},
			}},
		{Opcode: pcode.OpLoad, Seq: 1,
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 8},
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceConst, Offset: 0, Size: 8},
				{Space: pcode.SpaceConst, Offset: 0x500, Size: 8},
			}},
	}
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	_, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, uint64(77), getU64(state, 0))
}

func putF32(s *pcodetest.State, offset int, f float32) {
	bits := math.Float32bits(f)
	for i := 0; i < 4; i++ {
		s.Cells[offset+i] = byte(bits >> (8 * i))
	}
}
