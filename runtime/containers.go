// Container APIs (spec.md §6 item 2): array and hash mutators the
// ARRAY_*/HASH_* opcode group delegates to. Each exposes a stable
// iteration order per invocation, backed directly by values.Array's
// slice and values.Hash's insertion-ordered key list.
package runtime

import (
	"sort"

	"github.com/wudi/harp/diag"
	"github.com/wudi/harp/values"
)

func arrayIndex(arr *values.Array, i int64) int {
	if i < 0 {
		i += int64(len(arr.Elems))
	}
	return int(i)
}

func ArrayGet(container, key *values.Value) (*values.Value, error) {
	idx := arrayIndex(container.Arr, key.ToInt())
	if idx < 0 || idx >= len(container.Arr.Elems) {
		return values.Undef(), nil
	}
	return container.Arr.Elems[idx], nil
}

func ArraySet(container, key, val *values.Value) error {
	idx := arrayIndex(container.Arr, key.ToInt())
	if idx < 0 {
		return &diag.Die{Message: "Modification of non-creatable array value attempted"}
	}
	for idx >= len(container.Arr.Elems) {
		container.Arr.Elems = append(container.Arr.Elems, values.Undef())
	}
	container.Arr.Elems[idx] = val
	return nil
}

func ArrayPush(container *values.Value, vals ...*values.Value) (*values.Value, error) {
	container.Arr.Elems = append(container.Arr.Elems, vals...)
	return values.NewInt(int64(len(container.Arr.Elems))), nil
}

func ArrayPop(container *values.Value) (*values.Value, error) {
	n := len(container.Arr.Elems)
	if n == 0 {
		return values.Undef(), nil
	}
	v := container.Arr.Elems[n-1]
	container.Arr.Elems = container.Arr.Elems[:n-1]
	return v, nil
}

func ArrayShift(container *values.Value) (*values.Value, error) {
	if len(container.Arr.Elems) == 0 {
		return values.Undef(), nil
	}
	v := container.Arr.Elems[0]
	container.Arr.Elems = container.Arr.Elems[1:]
	return v, nil
}

func ArrayUnshift(container *values.Value, vals ...*values.Value) (*values.Value, error) {
	merged := make([]*values.Value, 0, len(vals)+len(container.Arr.Elems))
	merged = append(merged, vals...)
	merged = append(merged, container.Arr.Elems...)
	container.Arr.Elems = merged
	return values.NewInt(int64(len(container.Arr.Elems))), nil
}

func ArraySize(container *values.Value) (*values.Value, error) {
	return values.NewInt(int64(len(container.Arr.Elems))), nil
}

func ArraySlice(container *values.Value, keys []*values.Value) (*values.Value, error) {
	out := make([]*values.Value, 0, len(keys))
	for _, k := range keys {
		v, _ := ArrayGet(container, k)
		out = append(out, v)
	}
	return values.NewArray(out), nil
}

func ArraySpliceRemove(container *values.Value, offset, length int) []*values.Value {
	elems := container.Arr.Elems
	off := clampOffset(offset, len(elems))
	end := off + length
	if end > len(elems) {
		end = len(elems)
	}
	if end < off {
		end = off
	}
	removed := append([]*values.Value{}, elems[off:end]...)
	container.Arr.Elems = append(elems[:off:off], elems[end:]...)
	return removed
}

func ArraySpliceInsert(container *values.Value, offset int, insert []*values.Value) {
	off := clampOffset(offset, len(container.Arr.Elems))
	tail := append([]*values.Value{}, container.Arr.Elems[off:]...)
	container.Arr.Elems = append(append(container.Arr.Elems[:off:off], insert...), tail...)
}

func ArrayReverse(container *values.Value) (*values.Value, error) {
	elems := container.Arr.Elems
	out := make([]*values.Value, len(elems))
	for i, v := range elems {
		out[len(elems)-1-i] = v
	}
	return values.NewArray(out), nil
}

func ArraySort(container *values.Value, less func(a, b *values.Value) bool) (*values.Value, error) {
	out := append([]*values.Value{}, container.Arr.Elems...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return values.NewArray(out), nil
}

// --- hash ---

func HashGet(container, key *values.Value) (*values.Value, error) {
	v, ok := container.Hash.Get(key.ToString())
	if !ok {
		return values.Undef(), nil
	}
	return v, nil
}

func HashSet(container, key, val *values.Value) error {
	container.Hash.Set(key.ToString(), val)
	return nil
}

func HashExists(container, key *values.Value) (*values.Value, error) {
	_, ok := container.Hash.Get(key.ToString())
	return boolScalar(ok), nil
}

func HashDelete(container, key *values.Value) (*values.Value, error) {
	v, ok := container.Hash.Get(key.ToString())
	if !ok {
		return values.Undef(), nil
	}
	container.Hash.Delete(key.ToString())
	return v, nil
}

func HashKeys(container *values.Value) (*values.Value, error) {
	ks := container.Hash.Keys()
	out := make([]*values.Value, len(ks))
	for i, k := range ks {
		out[i] = values.NewString(k)
	}
	return values.NewArray(out), nil
}

func HashValues(container *values.Value) (*values.Value, error) {
	return values.NewArray(container.Hash.Values()), nil
}

func HashSlice(container *values.Value, keys []*values.Value) (*values.Value, error) {
	out := make([]*values.Value, 0, len(keys))
	for _, k := range keys {
		v, _ := HashGet(container, k)
		out = append(out, v)
	}
	return values.NewArray(out), nil
}

func HashSliceDelete(container *values.Value, keys []*values.Value) (*values.Value, error) {
	out := make([]*values.Value, 0, len(keys))
	for _, k := range keys {
		v, _ := HashDelete(container, k)
		out = append(out, v)
	}
	return values.NewArray(out), nil
}
