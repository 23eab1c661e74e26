package layers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// namedParams maps state dict keys to parameters in a fixed order.
type namedParams[B tensor.Backend] struct {
	names  []string
	params []*nn.Parameter[B]
}

func (n *namedParams[B]) add(name string, p *nn.Parameter[B]) {
	if p == nil {
		return
	}
	n.names = append(n.names, name)
	n.params = append(n.params, p)
}

func (n *namedParams[B]) stateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, len(n.names))
	for i, name := range n.names {
		state[name] = n.params[i].Tensor().Raw()
	}
	return state
}

func (n *namedParams[B]) loadStateDict(state map[string]*tensor.RawTensor) error {
	for i, name := range n.names {
		raw, ok := state[name]
		if !ok {
			return fmt.Errorf("missing %s in state dict", name)
		}
		if err := CopyInto(n.params[i], raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// CopyInto overwrites the parameter data with raw after checking shape and dtype.
func CopyInto[B tensor.Backend](p *nn.Parameter[B], raw *tensor.RawTensor) error {
	want := p.Tensor().Shape()
	if !raw.Shape().Equal(want) {
		return fmt.Errorf("shape mismatch: expected %v, got %v", want, raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("dtype mismatch: expected float32, got %v", raw.DType())
	}
	copy(p.Tensor().Data(), raw.AsFloat32())
	return nil
}

// CheckState reports the first entry of want that state lacks or holds with
// a different shape or dtype. Nothing is copied.
func CheckState(want, state map[string]*tensor.RawTensor) error {
	for _, name := range StateKeys(want) {
		raw, ok := state[name]
		if !ok {
			return fmt.Errorf("missing %s in state dict", name)
		}
		if !raw.Shape().Equal(want[name].Shape()) {
			return fmt.Errorf("%s: shape mismatch: expected %v, got %v", name, want[name].Shape(), raw.Shape())
		}
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("%s: dtype mismatch: expected float32, got %v", name, raw.DType())
		}
	}
	return nil
}

// CloneState copies the data of every tensor of state into fresh buffers.
// RawTensor.Clone shares its buffer, so it cannot serve as a snapshot.
func CloneState(state map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error) {
	out := make(map[string]*tensor.RawTensor, len(state))
	for name, raw := range state {
		dup, err := tensor.NewRaw(raw.Shape().Clone(), raw.DType(), raw.Device())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		copy(dup.Data(), raw.Data())
		out[name] = dup
	}
	return out, nil
}

// MergeState copies every entry of src into dst under prefix + ".".
func MergeState(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+"."+name] = raw
	}
}

// SubState returns the entries of state under prefix + "." with the prefix removed.
func SubState(state map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	p := prefix + "."
	sub := make(map[string]*tensor.RawTensor)
	for key, raw := range state {
		if name, ok := strings.CutPrefix(key, p); ok {
			sub[name] = raw
		}
	}
	return sub
}

// StateKeys returns the keys of a state dict in sorted order.
func StateKeys(state map[string]*tensor.RawTensor) []string {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CountParams returns the number of scalar values held by params.
func CountParams[B tensor.Backend](params []*nn.Parameter[B]) int {
	total := 0
	for _, p := range params {
		total += p.Tensor().Shape().NumElements()
	}
	return total
}
