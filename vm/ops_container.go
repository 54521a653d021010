package vm

import (
	"fmt"

	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/runtime"
	"github.com/wudi/harp/values"
)

func bundleElems(v *values.Value) []*values.Value {
	if v == nil || v.Kind != values.KindArray {
		return nil
	}
	return v.Arr.Elems
}

func bundleAt(v *values.Value, i int) *values.Value {
	elems := bundleElems(v)
	if i >= len(elems) {
		return values.Undef()
	}
	return elems[i]
}

// --- array ops (140-169) ---

func (vm *Interpreter) execArrayOp(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_ARRAY_CREATE:
		return vm.arrayCreate(f, inst)
	case opcodes.OP_ARRAY_GET:
		return f.containerBinary(inst, runtime.ArrayGet)
	case opcodes.OP_ARRAY_SET:
		return f.containerSet(inst, runtime.ArraySet)
	case opcodes.OP_ARRAY_PUSH:
		return f.containerVariadic(inst, runtime.ArrayPush)
	case opcodes.OP_ARRAY_POP:
		return f.containerUnary(inst, runtime.ArrayPop)
	case opcodes.OP_ARRAY_SHIFT:
		return f.containerUnary(inst, runtime.ArrayShift)
	case opcodes.OP_ARRAY_UNSHIFT:
		return f.containerVariadic(inst, runtime.ArrayUnshift)
	case opcodes.OP_ARRAY_SIZE:
		return f.containerUnary(inst, runtime.ArraySize)
	case opcodes.OP_ARRAY_SLICE:
		return f.containerSlice(inst, runtime.ArraySlice)
	case opcodes.OP_ARRAY_SLICE_SET:
		return vm.arraySliceSet(f, inst)
	case opcodes.OP_ARRAY_SPLICE:
		return vm.arraySplice(f, inst)
	case opcodes.OP_ARRAY_REVERSE:
		return f.containerUnary(inst, runtime.ArrayReverse)
	default:
		return stepResult{}, fmt.Errorf("unhandled array opcode %s", inst.Opcode)
	}
}

func (vm *Interpreter) arrayCreate(f *frame, inst opcodes.Instruction) (stepResult, error) {
	if opcodes.DecodeOpType1(inst.OpType1) == opcodes.IS_UNUSED {
		return advance2(f.setReg(inst.Result, values.NewArray(nil)))
	}
	src, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, values.NewArray(append([]*values.Value{}, bundleElems(src)...))))
}

func (f *frame) containerUnary(inst opcodes.Instruction, fn func(c *values.Value) (*values.Value, error)) (stepResult, error) {
	c, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	v, err := fn(c)
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, v))
}

func (f *frame) containerBinary(inst opcodes.Instruction, fn func(c, key *values.Value) (*values.Value, error)) (stepResult, error) {
	c, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	key, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	v, err := fn(c, key)
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, v))
}

// containerSet handles ARRAY_SET/HASH_SET's [key, value] bundle
// convention (compiler/stmt.go's storeIndex).
func (f *frame) containerSet(inst opcodes.Instruction, fn func(c, key, val *values.Value) error) (stepResult, error) {
	c, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	bundle, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	if err := fn(c, bundleAt(bundle, 0), bundleAt(bundle, 1)); err != nil {
		return stepResult{}, err
	}
	return advance()
}

func (f *frame) containerVariadic(inst opcodes.Instruction, fn func(c *values.Value, vals ...*values.Value) (*values.Value, error)) (stepResult, error) {
	c, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	bundle, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	v, err := fn(c, bundleElems(bundle)...)
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, v))
}

func (f *frame) containerSlice(inst opcodes.Instruction, fn func(c *values.Value, keys []*values.Value) (*values.Value, error)) (stepResult, error) {
	c, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	keys, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	v, err := fn(c, bundleElems(keys))
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, v))
}

func (vm *Interpreter) arraySliceSet(f *frame, inst opcodes.Instruction) (stepResult, error) {
	c, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	bundle, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	keys := bundleElems(bundleAt(bundle, 0))
	vals := bundleElems(bundleAt(bundle, 1))
	for i, k := range keys {
		var v *values.Value
		if i < len(vals) {
			v = vals[i]
		} else {
			v = values.Undef()
		}
		if err := runtime.ArraySet(c, k, v); err != nil {
			return stepResult{}, err
		}
	}
	return advance()
}

func (vm *Interpreter) arraySplice(f *frame, inst opcodes.Instruction) (stepResult, error) {
	c, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	bundle, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	offset := int(bundleAt(bundle, 0).ToInt())
	length := int(bundleAt(bundle, 1).ToInt())
	insert := bundleElems(bundleAt(bundle, 2))
	removed := runtime.ArraySpliceRemove(c, offset, length)
	if len(insert) > 0 {
		runtime.ArraySpliceInsert(c, offset, insert)
	}
	return advance2(f.setReg(inst.Result, values.NewArray(removed)))
}

// --- hash ops (170-189) ---

func (vm *Interpreter) execHashOp(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_HASH_CREATE:
		return advance2(f.setReg(inst.Result, values.NewHash()))
	case opcodes.OP_HASH_GET:
		return f.containerBinary(inst, runtime.HashGet)
	case opcodes.OP_HASH_SET:
		return f.containerSet(inst, runtime.HashSet)
	case opcodes.OP_HASH_EXISTS:
		return f.containerBinary(inst, runtime.HashExists)
	case opcodes.OP_HASH_DELETE:
		return f.containerBinary(inst, runtime.HashDelete)
	case opcodes.OP_HASH_KEYS:
		return f.containerUnary(inst, runtime.HashKeys)
	case opcodes.OP_HASH_VALUES:
		return f.containerUnary(inst, runtime.HashValues)
	case opcodes.OP_HASH_SLICE:
		return f.containerSlice(inst, runtime.HashSlice)
	case opcodes.OP_HASH_SLICE_SET:
		return vm.hashSliceSet(f, inst)
	case opcodes.OP_HASH_SLICE_DELETE:
		return f.containerSlice(inst, runtime.HashSliceDelete)
	default:
		return stepResult{}, fmt.Errorf("unhandled hash opcode %s", inst.Opcode)
	}
}

func (vm *Interpreter) hashSliceSet(f *frame, inst opcodes.Instruction) (stepResult, error) {
	c, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	bundle, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	keys := bundleElems(bundleAt(bundle, 0))
	vals := bundleElems(bundleAt(bundle, 1))
	for i, k := range keys {
		var v *values.Value
		if i < len(vals) {
			v = vals[i]
		} else {
			v = values.Undef()
		}
		if err := runtime.HashSet(c, k, v); err != nil {
			return stepResult{}, err
		}
	}
	return advance()
}
