package began

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ParamGroup Ordered set of parameter values owned by one network.
// Every graph the network is bound to reads and writes these values, so a single group
// is shared between generator and discriminator composites.
type ParamGroup struct {
	Name   string
	names  []string
	values []*tensor.Dense
}

func newParamGroup(name string) *ParamGroup {
	return &ParamGroup{Name: name}
}

func (pg *ParamGroup) add(name string, value *tensor.Dense) {
	pg.names = append(pg.names, name)
	pg.values = append(pg.values, value)
}

// Len Returns number of parameter tensors
func (pg *ParamGroup) Len() int {
	return len(pg.values)
}

// Names Returns names of parameter tensors in group order
func (pg *ParamGroup) Names() []string {
	return append([]string(nil), pg.names...)
}

// Values Returns parameter tensors in group order. Tensors are not copied.
func (pg *ParamGroup) Values() []*tensor.Dense {
	return pg.values
}

// Count Returns total number of scalar parameters
func (pg *ParamGroup) Count() int {
	total := 0
	for _, v := range pg.values {
		total += v.Shape().TotalSize()
	}
	return total
}

// set Replaces values of the group by provided tensors keeping the backing arrays
func (pg *ParamGroup) set(values []*tensor.Dense) error {
	if len(values) != len(pg.values) {
		return fmt.Errorf("group '%s' has %d tensors, but got %d", pg.Name, len(pg.values), len(values))
	}
	for i := range values {
		if !values[i].Shape().Eq(pg.values[i].Shape()) {
			return fmt.Errorf("group '%s' tensor '%s' has shape %v, but got %v", pg.Name, pg.names[i], pg.values[i].Shape(), values[i].Shape())
		}
	}
	for i := range values {
		copyDense(pg.values[i], values[i])
	}
	return nil
}

// copyDense Copies data of src into dst. Both should have the same size
func copyDense(dst, src *tensor.Dense) {
	if dst == src {
		return
	}
	copy(dst.Data().([]float64), src.Data().([]float64))
}

// TrainableSet Per-network flags telling which parameter groups receive updates during a phase.
// It is a value: every composite gets its own copy at construction time and never changes it.
type TrainableSet struct {
	Generator bool
	Encoder   bool
	Decoder   bool
}

var (
	// GeneratorPhase Only generator is trained, autoencoder is frozen
	GeneratorPhase = TrainableSet{Generator: true}
	// DiscriminatorPhase Only autoencoder (encoder+decoder) is trained, generator is frozen
	DiscriminatorPhase = TrainableSet{Encoder: true, Decoder: true}
)

func (ts TrainableSet) String() string {
	return fmt.Sprintf("trainable{generator=%t encoder=%t decoder=%t}", ts.Generator, ts.Encoder, ts.Decoder)
}

// paramBinding Nodes of a network on a certain graph together with values they were bound to
type paramBinding struct {
	group *ParamGroup
	nodes gorgonia.Nodes
}

// push Copies group values into graph's nodes if nodes hold their own copies
func (pb *paramBinding) push() {
	for i, n := range pb.nodes {
		if v, ok := n.Value().(*tensor.Dense); ok {
			copyDense(v, pb.group.values[i])
		}
	}
}

// pull Copies graph's node values back into the group
func (pb *paramBinding) pull() {
	for i, n := range pb.nodes {
		if v, ok := n.Value().(*tensor.Dense); ok {
			copyDense(pb.group.values[i], v)
		}
	}
}
