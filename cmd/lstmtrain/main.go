// Package main - recurrent time series training and inference.
// Trains a recurrent model (LSTM by default) for next-step prediction on a
// synthetic sine series or on one column of a CSV file.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/dataset"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/layer"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/loss"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/net"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/opt"
)

type options struct {
	csvPath    string
	column     int
	points     int
	window     int
	epochs     int
	lr         float64
	clip       float64
	seed       uint64
	checkpoint string
	ggufPath   string
	logPath    string
	headDrop   float64
	rnn        layer.RNNConfig
}

func main() {
	o := options{rnn: layer.NewRNNConfig(1, 32, autograd.LSTM)}
	flag.StringVar(&o.csvPath, "csv", "", "CSV file to read the series from (synthetic sine when empty)")
	flag.IntVar(&o.column, "col", 0, "CSV column holding the series")
	flag.IntVar(&o.points, "points", 400, "length of the synthetic series")
	flag.IntVar(&o.window, "window", 16, "time steps per training window")
	flag.IntVar(&o.epochs, "epochs", 30, "training epochs")
	flag.Float64Var(&o.lr, "lr", 0.005, "Adam learning rate")
	flag.Float64Var(&o.clip, "clip", 1, "gradient norm clip (0 disables)")
	flag.Uint64Var(&o.seed, "seed", 42, "random seed")
	flag.StringVar(&o.checkpoint, "checkpoint", "lstm_model.gob", "best-model checkpoint file")
	flag.StringVar(&o.ggufPath, "gguf", "", "also export the trained parameters as GGUF")
	flag.StringVar(&o.logPath, "log-csv", "", "write per-epoch metrics to this CSV file")
	flag.IntVar(&o.rnn.HiddenSize, "hidden", o.rnn.HiddenSize, "hidden units per direction")
	flag.IntVar(&o.rnn.NumLayers, "layers", o.rnn.NumLayers, "stacked recurrent layers")
	flag.TextVar(&o.rnn.Mode, "mode", o.rnn.Mode, "relu, tanh, lstm or gru")
	flag.BoolVar(&o.rnn.Bidirectional, "bidirectional", false, "add a reversed pass")
	flag.Float64Var(&o.rnn.DropoutProb, "dropout", 0, "dropout between layers")
	flag.Float64Var(&o.headDrop, "head-dropout", 0.1, "dropout before the output projection (0 disables)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if err := run(o, log); err != nil {
		log.WithError(err).Fatal("lstmtrain failed")
	}
}

func run(o options, log *logrus.Logger) error {
	// Step 1: series
	series, err := loadSeries(o)
	if err != nil {
		return err
	}
	lo, hi := minMax(series)
	mean, scale := (hi+lo)/2, (hi-lo)/2
	if scale == 0 {
		scale = 1
	}
	log.WithFields(logrus.Fields{"points": len(series), "min": lo, "max": hi}).Info("series loaded")

	// Step 2: windows, normalized to [-1, 1]
	windows, err := dataset.SeriesWindows(series, o.window)
	if err != nil {
		return err
	}
	trainRaw, testRaw := windows.Split(0.8)
	norm := dataset.Normalize(mean, scale)
	train, err := dataset.NewTransformDataset(trainRaw, norm, norm)
	if err != nil {
		return err
	}
	test, err := dataset.NewTransformDataset(testRaw, norm, norm)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"train": train.Len(), "test": test.Len()}).Info("samples prepared")

	// Step 3: model
	model, err := buildModel(o, o.seed)
	if err != nil {
		return err
	}
	model.Summary(os.Stdout)

	// Step 4: training
	adam := opt.NewAdam(model.Params(), o.lr)
	trainer := net.NewTrainer(model, loss.MSE{}, adam, log)
	trainer.ClipNorm = o.clip
	trainer.AddCallback(
		net.LogCallback{Interval: 5},
		net.NewEarlyStopping(8, 1e-6),
		net.NewSchedulerCallback(opt.NewStepLR(adam, 10, 0.5)),
		net.NewModelCheckpoint(o.checkpoint),
	)
	if o.logPath != "" {
		trainer.AddCallback(net.NewCSVLogger(o.logPath, false))
	}
	history, err := trainer.Fit(train, o.epochs)
	if err != nil {
		return err
	}

	// Step 5: evaluation
	trainMSE, err := trainer.Evaluate(train)
	if err != nil {
		return err
	}
	testMSE, err := trainer.Evaluate(test)
	if err != nil {
		return err
	}
	testMAE, err := net.NewTrainer(model, loss.L1{}, adam, log).Evaluate(test)
	if err != nil {
		return err
	}

	// Step 6: reload the best checkpoint into a fresh model and compare
	restored, err := buildModel(o, o.seed+1)
	if err != nil {
		return err
	}
	if err := net.LoadFile(o.checkpoint, restored.Params()); err != nil {
		return err
	}
	restoredMSE, err := net.NewTrainer(restored, loss.MSE{}, opt.NewSGD(restored.Params(), 0, 0), log).Evaluate(test)
	if err != nil {
		return err
	}

	// Step 7: one-step prediction from the last window
	last, err := test.Get(test.Len() - 1)
	if err != nil {
		return err
	}
	pred, err := trainer.Predict(last[0])
	if err != nil {
		return err
	}
	next := pred.Data()[pred.Size()-1]*scale + mean

	if o.ggufPath != "" {
		f, err := os.Create(o.ggufPath)
		if err != nil {
			return err
		}
		if err := net.ExportGGUF(f, model, net.GGMLTypeF32); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  - Model:              %s\n", model.Describe())
	fmt.Printf("  - Epochs run:         %d\n", len(history))
	fmt.Printf("  - Training MSE:       %.6f\n", trainMSE)
	fmt.Printf("  - Testing MSE:        %.6f\n", testMSE)
	fmt.Printf("  - Testing MAE:        %.6f\n", testMAE)
	fmt.Printf("  - Checkpoint MSE:     %.6f (%s)\n", restoredMSE, o.checkpoint)
	fmt.Printf("  - Next value:         %.4f\n", next)
	return nil
}

// buildModel returns RNN -> [Dropout ->] Linear.
func buildModel(o options, seed uint64) (*net.Sequential, error) {
	engine := autograd.NewCPU(seed)
	rnn, err := layer.NewRNN(o.rnn, engine)
	if err != nil {
		return nil, err
	}
	model := net.NewSequential(rnn)
	if o.headDrop > 0 {
		drop, err := layer.NewDropout(o.headDrop, engine)
		if err != nil {
			return nil, err
		}
		model.Add(drop)
	}
	head, err := layer.NewLinear(rnn.OutputSize(), 1, engine)
	if err != nil {
		return nil, err
	}
	model.Add(head)
	return model, nil
}

func loadSeries(o options) ([]float64, error) {
	if o.csvPath != "" {
		ds, err := dataset.LoadCSV(o.csvPath, []int{o.column}, true)
		if err != nil {
			return nil, err
		}
		// The chosen column is the only label field.
		return ds.Column(1, 0)
	}
	return generateTimeSeries(o.points, o.seed), nil
}

// generateTimeSeries generates a noisy sine wave with a slow trend.
func generateTimeSeries(count int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	series := make([]float64, count)
	for i := range series {
		t := float64(i) / float64(count-1) * 8 * math.Pi
		series[i] = math.Sin(t) + 0.1*math.Sin(t/2) + (rng.Float64()-0.5)*0.1
	}
	return series
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}
