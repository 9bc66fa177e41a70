package began

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network Abstraction for neural network.
//
// Name - prefix for nodes and parameters
// Layers - simple sequence of layers
// params - values of weights and biases in order of layers (weight first, then bias)
//
type Network struct {
	Name   string
	Layers []*Layer
	params *ParamGroup
}

// NewNetwork Creates network and initializes its parameters (Glorot normal weights, zero biases)
func NewNetwork(name string, layers ...*Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("Network '%s' must have one layer atleast", name)
	}
	net := &Network{
		Name:   name,
		Layers: layers,
		params: newParamGroup(name),
	}
	for i, l := range layers {
		if err := l.validate(); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Network '%s', Layer #%d]", name, i))
		}
		if l.WeightShape != nil {
			data := gorgonia.GlorotN(1.0)(tensor.Float64, l.WeightShape...)
			w := tensor.New(tensor.WithShape(l.WeightShape.Clone()...), tensor.WithBacking(data))
			net.params.add(fmt.Sprintf("%s_w%d", name, i), w)
		}
		if l.BiasShape != nil {
			b := tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(l.BiasShape.Clone()...))
			net.params.add(fmt.Sprintf("%s_b%d", name, i), b)
		}
	}
	return net, nil
}

// Params Returns parameter group of the network
func (net *Network) Params() *ParamGroup {
	return net.params
}

// Bind Instantiates network's parameters as nodes of provided graph.
// Nodes are bound to the values of network's parameter group.
func (net *Network) Bind(g *gorgonia.ExprGraph) *BoundNetwork {
	bound := &BoundNetwork{
		name:    net.Name,
		layers:  make([]*boundLayer, len(net.Layers)),
		binding: &paramBinding{group: net.params},
	}
	idx := 0
	for i, l := range net.Layers {
		bl := &boundLayer{Layer: l}
		if l.WeightShape != nil {
			bl.WeightNode = bound.bindParam(g, idx)
			idx++
		}
		if l.BiasShape != nil {
			bl.BiasNode = bound.bindParam(g, idx)
			idx++
		}
		bound.layers[i] = bl
	}
	return bound
}

// BoundNetwork Network instantiated on certain graph
type BoundNetwork struct {
	name    string
	layers  []*boundLayer
	binding *paramBinding
	calls   int
}

func (net *BoundNetwork) bindParam(g *gorgonia.ExprGraph, idx int) *gorgonia.Node {
	value := net.binding.group.values[idx]
	n := gorgonia.NewTensor(g, tensor.Float64, value.Dims(), gorgonia.WithShape(value.Shape()...), gorgonia.WithName(net.binding.group.names[idx]), gorgonia.WithValue(value))
	net.binding.nodes = append(net.binding.nodes, n)
	return n
}

// Learnables Returns learnables nodes
func (net *BoundNetwork) Learnables() gorgonia.Nodes {
	return net.binding.nodes
}

// Fwd Initializates feedforward for provided input and returns activated output of last layer.
// Could be called multiple times on the same graph: every call shares the same weights.
//
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *BoundNetwork) Fwd(input *gorgonia.Node, batchSize int) (*gorgonia.Node, error) {
	if input == nil {
		return nil, fmt.Errorf("Network '%s' got nil input", net.name)
	}
	prefix := net.name
	if net.calls > 0 {
		prefix = fmt.Sprintf("%s_%d", net.name, net.calls)
	}
	net.calls++

	lastActivatedLayer := input
	for i, l := range net.layers {
		if l.WeightNode == nil && !noWeightsAllowed(l.Type) {
			return nil, fmt.Errorf("Network's '%s' layer's #%d WeightNode is nil", net.name, i)
		}
		layerNonActivated, err := l.Fwd(batchSize, lastActivatedLayer)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Network '%s', Layer #%d] Can't feedforward input before activation", net.name, i))
		}
		if layerNonActivated != lastActivatedLayer {
			gorgonia.WithName(fmt.Sprintf("%s_%d", prefix, i))(layerNonActivated)
		}
		layerActivated, err := l.activate(layerNonActivated)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't apply activation function to non-activated output of Network's '%s' layer #%d", net.name, i))
		}
		if layerActivated != layerNonActivated {
			gorgonia.WithName(fmt.Sprintf("%s_activated_%d", prefix, i))(layerActivated)
		}
		lastActivatedLayer = layerActivated
	}
	return lastActivatedLayer, nil
}

// push Copies parameter group's values into the nodes
func (net *BoundNetwork) push() {
	net.binding.push()
}

// pull Copies nodes' values into parameter group
func (net *BoundNetwork) pull() {
	net.binding.pull()
}
