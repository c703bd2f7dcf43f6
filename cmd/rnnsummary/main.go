// Command rnnsummary builds a recurrent module from flags or a JSON config,
// reports its description and parameter buffer, and runs one forward pass in
// training and in evaluation mode.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/sirupsen/logrus"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/layer"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/net"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "JSON file with the module configuration (overrides the size flags)")
		cfg     = layer.NewRNNConfig(10, 20, autograd.LSTM)
		seqLen  = flag.Int("seq", 5, "sequence length of the probe input")
		batch   = flag.Int("batch", 2, "batch size of the probe input")
		seed    = flag.Uint64("seed", 1, "engine random seed")
		verbose = flag.Bool("v", false, "debug logging")
		maxMem  = 64 * datasize.MB
	)
	flag.IntVar(&cfg.InputSize, "input", cfg.InputSize, "features per time step")
	flag.IntVar(&cfg.HiddenSize, "hidden", cfg.HiddenSize, "hidden units per direction")
	flag.IntVar(&cfg.NumLayers, "layers", cfg.NumLayers, "stacked recurrent layers")
	flag.TextVar(&cfg.Mode, "mode", cfg.Mode, "relu, tanh, lstm or gru")
	flag.BoolVar(&cfg.Bidirectional, "bidirectional", false, "add a reversed pass")
	flag.Float64Var(&cfg.DropoutProb, "dropout", 0, "dropout between layers in training mode")
	flag.TextVar(&maxMem, "max-mem", maxMem, "refuse parameter buffers larger than this (e.g. 64MB)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
		logrus.SetLevel(logrus.DebugLevel)
	}

	if *cfgPath != "" {
		f, err := os.Open(*cfgPath)
		if err != nil {
			log.WithError(err).Fatal("open config")
		}
		cfg, err = layer.LoadRNNConfig(f)
		f.Close()
		if err != nil {
			log.WithError(err).Fatal("load config")
		}
	}

	engine := autograd.NewCPU(*seed)
	n, err := engine.NumRNNParams(cfg.InputSize, cfg.HiddenSize, cfg.NumLayers, cfg.Mode, cfg.Bidirectional)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if size := net.ParamBytes(n); size > maxMem {
		log.WithFields(logrus.Fields{
			"params": n,
			"size":   size.HumanReadable(),
			"limit":  maxMem.HumanReadable(),
		}).Fatal("parameter buffer exceeds limit")
	}

	rnn, err := layer.NewRNN(cfg, engine)
	if err != nil {
		log.WithError(err).Fatal("create module")
	}

	fmt.Println(rnn.Describe())
	fmt.Printf("  parameters:   %d (%s)\n", rnn.NumParams(), net.ParamBytes(rnn.NumParams()).HumanReadable())
	fmt.Printf("  output width: %d\n", rnn.OutputSize())

	x := engine.Uniform([]int{*seqLen, *batch, cfg.InputSize}, -1, 1, false)
	stateShape := []int{cfg.NumLayers * cfg.NumDirections(), *batch, cfg.HiddenSize}
	h := autograd.Constant(tensor.Zeros(stateShape...))
	c := autograd.Constant(tensor.Zeros(stateShape...))

	for _, mode := range []layer.Mode{layer.Training, layer.Evaluation} {
		out, err := rnn.Apply(mode, x, h, c)
		if err != nil {
			log.WithError(err).WithField("mode", mode).Fatal("forward failed")
		}
		fmt.Printf("  %-10s  y %v  hy %v  cy %v\n", mode, out[0].Shape(), out[1].Shape(), out[2].Shape())
	}

	a, err := rnn.Apply(layer.Evaluation, x)
	if err != nil {
		log.WithError(err).Fatal("forward failed")
	}
	b, err := rnn.Apply(layer.Evaluation, x)
	if err != nil {
		log.WithError(err).Fatal("forward failed")
	}
	fmt.Printf("  evaluation deterministic: %v\n", a[0].Value().EqualApprox(b[0].Value(), 0))
	log.WithFields(logrus.Fields{"seq": *seqLen, "batch": *batch}).Debug("probe complete")
}
