package began

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ImageShape Shape of a single image (NCHW without batch axis)
type ImageShape struct {
	Channels int
	Height   int
	Width    int
}

// Batch Returns shape of image batch of provided size
func (s ImageShape) Batch(batchSize int) tensor.Shape {
	return tensor.Shape{batchSize, s.Channels, s.Height, s.Width}
}

func (s ImageShape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Channels, s.Height, s.Width)
}

// Networks Three networks of BEGAN. They are shared by both composites.
type Networks struct {
	Generator *Network
	Encoder   *Network
	Decoder   *Network
}

// GeneratorComposite Graph for Generator training: latent => Generator => Encoder => Decoder.
// Encoder and Decoder are frozen here: no dual values, no solver updates.
//
// forward - tape machine for Generator only (sampling)
// train - tape machine with dual values bound to Generator's learnables
//
type GeneratorComposite struct {
	graph     *gorgonia.ExprGraph
	batchSize int
	shape     ImageShape
	trainable TrainableSet

	input *gorgonia.Node
	gen   *BoundNetwork
	enc   *BoundNetwork
	dec   *BoundNetwork
	cost  *gorgonia.Node

	fakeVal gorgonia.Value
	costVal gorgonia.Value

	learnables gorgonia.Nodes
	forward    gorgonia.VM
	train      gorgonia.VM
	solver     gorgonia.Solver
}

// NewGeneratorComposite Defines Generator training graph for provided batch size
//
// zDims - latent space size
// solver - solver for Generator's learnables. Could be shared between composites of different batch sizes
//
func NewGeneratorComposite(nets Networks, shape ImageShape, zDims, batchSize int, solver gorgonia.Solver) (*GeneratorComposite, error) {
	return newGeneratorComposite(nets, shape, zDims, batchSize, solver, GeneratorPhase)
}

func newGeneratorComposite(nets Networks, shape ImageShape, zDims, batchSize int, solver gorgonia.Solver, trainable TrainableSet) (*GeneratorComposite, error) {
	if trainable != GeneratorPhase {
		return nil, fmt.Errorf("generator composite must train generator only, but got %s", trainable)
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, but got %d", batchSize)
	}
	g := gorgonia.NewGraph()
	gc := &GeneratorComposite{
		graph:     g,
		batchSize: batchSize,
		shape:     shape,
		trainable: trainable,
		solver:    solver,
	}
	gc.input = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(batchSize, zDims), gorgonia.WithName("generator_input"))
	gc.gen = nets.Generator.Bind(g)
	gc.enc = nets.Encoder.Bind(g)
	gc.dec = nets.Decoder.Bind(g)

	fake, err := gc.gen.Fwd(gc.input, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[Generator composite]")
	}
	if !fake.Shape().Eq(shape.Batch(batchSize)) {
		return nil, fmt.Errorf("Generator produces %v, but images are %v", fake.Shape(), shape.Batch(batchSize))
	}
	gorgonia.Read(fake, &gc.fakeVal)
	// Machine for sampling is compiled before autoencoder and loss are attached
	gc.forward = gorgonia.NewTapeMachine(g)

	code, err := gc.enc.Fwd(fake, batchSize)
	if err != nil {
		gc.forward.Close()
		return nil, errors.Wrap(err, "[Generator composite]")
	}
	recon, err := gc.dec.Fwd(code, batchSize)
	if err != nil {
		gc.forward.Close()
		return nil, errors.Wrap(err, "[Generator composite]")
	}
	if !recon.Shape().Eq(fake.Shape()) {
		gc.forward.Close()
		return nil, fmt.Errorf("Decoder produces %v, but images are %v", recon.Shape(), fake.Shape())
	}
	packed, err := packChannels(fake, recon)
	if err != nil {
		gc.forward.Close()
		return nil, errors.Wrap(err, "Can't pack generated images and reconstructions")
	}
	perSample, err := GeneratorLoss(packed, shape.Channels)
	if err != nil {
		gc.forward.Close()
		return nil, errors.Wrap(err, "[Generator composite]")
	}
	gc.cost, err = gorgonia.Mean(perSample)
	if err != nil {
		gc.forward.Close()
		return nil, errors.Wrap(err, "Can't do mean")
	}
	gorgonia.WithName("generator_loss")(gc.cost)
	gorgonia.Read(gc.cost, &gc.costVal)

	gc.learnables = gc.gen.Learnables()
	if _, err = gorgonia.Grad(gc.cost, gc.learnables...); err != nil {
		gc.forward.Close()
		return nil, errors.Wrap(err, "Can't define gradients for Generator")
	}
	gc.train = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(gc.learnables...))
	return gc, nil
}

// BatchSize Returns batch size composite was defined for
func (gc *GeneratorComposite) BatchSize() int {
	return gc.batchSize
}

// Trainable Returns trainable flags of the composite
func (gc *GeneratorComposite) Trainable() TrainableSet {
	return gc.trainable
}

// Generate Runs Generator forward (no training) and returns copy of generated images
func (gc *GeneratorComposite) Generate(latent *tensor.Dense) (*tensor.Dense, error) {
	gc.gen.push()
	if err := gorgonia.Let(gc.input, latent); err != nil {
		return nil, errors.Wrap(err, "Can't init Generator input value")
	}
	defer gc.forward.Reset()
	if err := runMachine(gc.forward); err != nil {
		return nil, errors.Wrap(err, "Can't run Generator")
	}
	fake, ok := gc.fakeVal.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("Generator output should be *tensor.Dense, but got %T", gc.fakeVal)
	}
	return fake.Clone().(*tensor.Dense), nil
}

// TrainStep Does one training step of Generator against frozen autoencoder. Returns loss before update.
func (gc *GeneratorComposite) TrainStep(latent *tensor.Dense) (float64, error) {
	gc.gen.push()
	gc.enc.push()
	gc.dec.push()
	if err := gorgonia.Let(gc.input, latent); err != nil {
		return 0, errors.Wrap(err, "Can't init Generator input value")
	}
	defer gc.train.Reset()
	if err := runMachine(gc.train); err != nil {
		return 0, errors.Wrap(err, "Can't run Generator training graph")
	}
	loss, err := scalarValue(gc.costVal)
	if err != nil {
		return 0, errors.Wrap(err, "Can't read Generator loss")
	}
	if err := gc.solver.Step(gorgonia.NodesToValueGrads(gc.learnables)); err != nil {
		return 0, errors.Wrap(err, "Can't do solver step for Generator")
	}
	gc.gen.pull()
	return loss, nil
}

// ToDot Returns graph in Graphviz format
func (gc *GeneratorComposite) ToDot() string {
	return gc.graph.ToDot()
}

// Close Releases tape machines
func (gc *GeneratorComposite) Close() error {
	errForward := gc.forward.Close()
	errTrain := gc.train.Close()
	if errForward != nil {
		return errForward
	}
	return errTrain
}

// DiscriminatorComposite Graph for autoencoder training on packed {generated, real} batches.
// Generator is not part of this graph: generated images are fed as input.
//
// forward - tape machine for reconstructions only (no loss)
// train - tape machine with dual values bound to Encoder's and Decoder's learnables
//
type DiscriminatorComposite struct {
	graph     *gorgonia.ExprGraph
	batchSize int
	shape     ImageShape
	trainable TrainableSet

	fakeInput *gorgonia.Node
	realInput *gorgonia.Node
	kt        *gorgonia.Node
	enc       *BoundNetwork
	dec       *BoundNetwork
	loss      *DiscriminatorLossNodes

	predVal      gorgonia.Value
	costVal      gorgonia.Value
	genReconVal  gorgonia.Value
	realReconVal gorgonia.Value

	learnables gorgonia.Nodes
	forward    gorgonia.VM
	train      gorgonia.VM
	solver     gorgonia.Solver
}

// DiscriminatorStep Result of one training step of autoencoder
//
// Loss - scalar loss minimized by solver
// GenRecon - per-sample reconstruction loss of generated images
// RealRecon - per-sample reconstruction loss of real images
//
type DiscriminatorStep struct {
	Loss      float64
	GenRecon  []float64
	RealRecon []float64
}

// NewDiscriminatorComposite Defines autoencoder training graph for provided batch size
//
// solver - solver for Encoder's and Decoder's learnables. Could be shared between composites of different batch sizes
//
func NewDiscriminatorComposite(nets Networks, shape ImageShape, batchSize int, solver gorgonia.Solver) (*DiscriminatorComposite, error) {
	return newDiscriminatorComposite(nets, shape, batchSize, solver, DiscriminatorPhase)
}

func newDiscriminatorComposite(nets Networks, shape ImageShape, batchSize int, solver gorgonia.Solver, trainable TrainableSet) (*DiscriminatorComposite, error) {
	if trainable != DiscriminatorPhase {
		return nil, fmt.Errorf("discriminator composite must train encoder and decoder only, but got %s", trainable)
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, but got %d", batchSize)
	}
	g := gorgonia.NewGraph()
	dc := &DiscriminatorComposite{
		graph:     g,
		batchSize: batchSize,
		shape:     shape,
		trainable: trainable,
		solver:    solver,
	}
	imgShape := shape.Batch(batchSize)
	dc.fakeInput = gorgonia.NewTensor(g, tensor.Float64, 4, gorgonia.WithShape(imgShape...), gorgonia.WithName("discriminator_generated_input"))
	dc.realInput = gorgonia.NewTensor(g, tensor.Float64, 4, gorgonia.WithShape(imgShape...), gorgonia.WithName("discriminator_real_input"))
	dc.enc = nets.Encoder.Bind(g)
	dc.dec = nets.Decoder.Bind(g)

	reconFake, err := dc.reconstruct(dc.fakeInput)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator composite, generated half]")
	}
	reconReal, err := dc.reconstruct(dc.realInput)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator composite, real half]")
	}
	if !reconFake.Shape().Eq(imgShape) {
		return nil, fmt.Errorf("Decoder produces %v, but images are %v", reconFake.Shape(), imgShape)
	}
	yTrue, err := packChannels(dc.fakeInput, dc.realInput)
	if err != nil {
		return nil, errors.Wrap(err, "Can't pack inputs")
	}
	yPred, err := packChannels(reconFake, reconReal)
	if err != nil {
		return nil, errors.Wrap(err, "Can't pack reconstructions")
	}
	gorgonia.Read(yPred, &dc.predVal)
	// Machine for reconstructions is compiled before loss is attached
	dc.forward = gorgonia.NewTapeMachine(g)

	dc.kt = gorgonia.NewScalar(g, tensor.Float64, gorgonia.WithName("k_t"))
	dc.loss, err = DiscriminatorLoss(yTrue, yPred, dc.kt, shape.Channels)
	if err != nil {
		dc.forward.Close()
		return nil, errors.Wrap(err, "[Discriminator composite]")
	}
	gorgonia.WithName("discriminator_loss")(dc.loss.Cost)
	gorgonia.Read(dc.loss.Cost, &dc.costVal)
	gorgonia.Read(dc.loss.GenRecon, &dc.genReconVal)
	gorgonia.Read(dc.loss.RealRecon, &dc.realReconVal)

	dc.learnables = append(append(gorgonia.Nodes{}, dc.enc.Learnables()...), dc.dec.Learnables()...)
	if _, err = gorgonia.Grad(dc.loss.Cost, dc.learnables...); err != nil {
		dc.forward.Close()
		return nil, errors.Wrap(err, "Can't define gradients for autoencoder")
	}
	dc.train = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(dc.learnables...))
	return dc, nil
}

func (dc *DiscriminatorComposite) reconstruct(input *gorgonia.Node) (*gorgonia.Node, error) {
	code, err := dc.enc.Fwd(input, dc.batchSize)
	if err != nil {
		return nil, err
	}
	return dc.dec.Fwd(code, dc.batchSize)
}

// BatchSize Returns batch size composite was defined for
func (dc *DiscriminatorComposite) BatchSize() int {
	return dc.batchSize
}

// Trainable Returns trainable flags of the composite
func (dc *DiscriminatorComposite) Trainable() TrainableSet {
	return dc.trainable
}

// TrainStep Does one training step of autoencoder.
// packed - packed pair {generated images, real images}
// state - equilibrium state used in loss. Caller is responsible for transition to the next state.
func (dc *DiscriminatorComposite) TrainStep(packed *tensor.Dense, state EquilibriumState) (*DiscriminatorStep, error) {
	fakeHalf, realHalf, err := SplitPair(packed, dc.shape.Channels)
	if err != nil {
		return nil, errors.Wrap(err, "Can't split packed batch")
	}
	if !allFinite(packed) {
		return nil, errors.Wrap(ErrDiverged, "packed batch holds NaN or Inf")
	}
	dc.enc.push()
	dc.dec.push()
	if err := gorgonia.Let(dc.fakeInput, fakeHalf); err != nil {
		return nil, errors.Wrap(err, "Can't init generated half input value")
	}
	if err := gorgonia.Let(dc.realInput, realHalf); err != nil {
		return nil, errors.Wrap(err, "Can't init real half input value")
	}
	if err := gorgonia.Let(dc.kt, gorgonia.NewF64(state.K)); err != nil {
		return nil, errors.Wrap(err, "Can't init k_t value")
	}
	defer dc.train.Reset()
	if err := runMachine(dc.train); err != nil {
		return nil, errors.Wrap(err, "Can't run autoencoder training graph")
	}
	step := &DiscriminatorStep{}
	if step.Loss, err = scalarValue(dc.costVal); err != nil {
		return nil, errors.Wrap(err, "Can't read autoencoder loss")
	}
	if step.GenRecon, err = vectorValue(dc.genReconVal); err != nil {
		return nil, errors.Wrap(err, "Can't read reconstruction loss of generated images")
	}
	if step.RealRecon, err = vectorValue(dc.realReconVal); err != nil {
		return nil, errors.Wrap(err, "Can't read reconstruction loss of real images")
	}
	if err := dc.solver.Step(gorgonia.NodesToValueGrads(dc.learnables)); err != nil {
		return nil, errors.Wrap(err, "Can't do solver step for autoencoder")
	}
	dc.enc.pull()
	dc.dec.pull()
	return step, nil
}

// Reconstruct Runs autoencoder forward (no training) and returns reconstructions of provided images
func (dc *DiscriminatorComposite) Reconstruct(images *tensor.Dense) (*tensor.Dense, error) {
	dc.enc.push()
	dc.dec.push()
	if err := gorgonia.Let(dc.fakeInput, images); err != nil {
		return nil, errors.Wrap(err, "Can't init input value")
	}
	if err := gorgonia.Let(dc.realInput, images); err != nil {
		return nil, errors.Wrap(err, "Can't init input value")
	}
	defer dc.forward.Reset()
	if err := runMachine(dc.forward); err != nil {
		return nil, errors.Wrap(err, "Can't run autoencoder")
	}
	pred, ok := dc.predVal.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("autoencoder output should be *tensor.Dense, but got %T", dc.predVal)
	}
	_, recon, err := SplitPair(pred, dc.shape.Channels)
	if err != nil {
		return nil, errors.Wrap(err, "Can't split reconstructions")
	}
	return recon, nil
}

// ToDot Returns graph in Graphviz format
func (dc *DiscriminatorComposite) ToDot() string {
	return dc.graph.ToDot()
}

// Close Releases tape machines
func (dc *DiscriminatorComposite) Close() error {
	errForward := dc.forward.Close()
	errTrain := dc.train.Close()
	if errForward != nil {
		return errForward
	}
	return errTrain
}

// runMachine Runs every instruction of vm. Some ops (e.g. max pooling gradient) panic on NaN values,
// such panics are reported as ErrDiverged.
func runMachine(vm gorgonia.VM) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(ErrDiverged, fmt.Sprintf("machine panicked: %v", r))
		}
	}()
	return vm.RunAll()
}

// allFinite Checks that tensor holds no NaN or Inf
func allFinite(t *tensor.Dense) bool {
	data, err := float64Data(t)
	if err != nil {
		return false
	}
	for _, v := range data {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

func scalarValue(v gorgonia.Value) (float64, error) {
	values, err := vectorValue(v)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("expected scalar, but got %d values", len(values))
	}
	return values[0], nil
}

func vectorValue(v gorgonia.Value) ([]float64, error) {
	if v == nil {
		return nil, fmt.Errorf("value hasn't been computed")
	}
	switch data := v.Data().(type) {
	case float64:
		return []float64{data}, nil
	case []float64:
		return append([]float64(nil), data...), nil
	default:
		return nil, fmt.Errorf("expected float64 data, but got %T", data)
	}
}
