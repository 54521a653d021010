package vm

import (
	"fmt"

	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/values"
)

// iterState is the runtime shape behind an ITERATOR_CREATE result: a
// materialized item list plus a cursor. Stored in a register via
// values.NewCode the same way a code object is, since Value has no
// dedicated iterator Kind and this core never exposes it to anything
// outside the list/iterator opcode group.
type iterState struct {
	items []*values.Value
	idx   int
}

func iteratorItems(src *values.Value) []*values.Value {
	switch src.Kind {
	case values.KindArray:
		return src.Arr.Elems
	case values.KindHash:
		keys := src.Hash.Keys()
		out := make([]*values.Value, 0, len(keys)*2)
		for _, k := range keys {
			v, _ := src.Hash.Get(k)
			out = append(out, values.NewString(k), v)
		}
		return out
	default:
		return []*values.Value{src}
	}
}

func (f *frame) iterAt(val uint32, t opcodes.OpType) (*iterState, error) {
	v, err := f.read(val, t)
	if err != nil {
		return nil, err
	}
	it, ok := v.Code.(*iterState)
	if !ok {
		return nil, fmt.Errorf("expected an iterator, got %T", v.Code)
	}
	return it, nil
}

// --- list / iterator (280-299) ---

func (vm *Interpreter) execListIterator(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_CREATE_LIST:
		count := inst.Op1
		first := inst.Op2
		elems := make([]*values.Value, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := f.regAt(first + i)
			if err != nil {
				return stepResult{}, err
			}
			elems = append(elems, v)
		}
		return advance2(f.setReg(inst.Result, values.NewArray(elems)))

	case opcodes.OP_LIST_TO_SCALAR:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		if v.Kind != values.KindArray || len(v.Arr.Elems) == 0 {
			return advance2(f.setReg(inst.Result, values.Undef()))
		}
		return advance2(f.setReg(inst.Result, v.Arr.Elems[len(v.Arr.Elems)-1]))

	case opcodes.OP_SCALAR_TO_LIST:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, values.NewArray([]*values.Value{v})))

	case opcodes.OP_ITERATOR_CREATE:
		src, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		it := &iterState{items: iteratorItems(src)}
		return advance2(f.setReg(inst.Result, values.NewCode(it)))

	case opcodes.OP_ITERATOR_HAS_NEXT:
		it, err := f.iterAt(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, boolVal(it.idx < len(it.items))))

	case opcodes.OP_ITERATOR_NEXT:
		it, err := f.iterAt(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		if it.idx >= len(it.items) {
			return advance2(f.setReg(inst.Result, values.Undef()))
		}
		v := it.items[it.idx]
		it.idx++
		return advance2(f.setReg(inst.Result, v))

	case opcodes.OP_FOREACH_NEXT_OR_EXIT:
		it, err := f.iterAt(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		if it.idx >= len(it.items) {
			return jumpTo(inst.Result)
		}
		v := it.items[it.idx]
		it.idx++
		if err := f.setReg(inst.Op2, v); err != nil {
			return stepResult{}, err
		}
		return advance()

	default:
		return stepResult{}, fmt.Errorf("unhandled list/iterator opcode %s", inst.Opcode)
	}
}
