package net

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/opt"
)

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(t *Trainer)
	OnTrainEnd(t *Trainer)
	OnEpochBegin(epoch int, t *Trainer)
	OnEpochEnd(epoch int, loss float64, t *Trainer)
	OnBatchBegin(batch int, t *Trainer)
	OnBatchEnd(batch int, loss float64, t *Trainer)
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (BaseCallback) OnTrainBegin(*Trainer)             {}
func (BaseCallback) OnTrainEnd(*Trainer)               {}
func (BaseCallback) OnEpochBegin(int, *Trainer)        {}
func (BaseCallback) OnEpochEnd(int, float64, *Trainer) {}
func (BaseCallback) OnBatchBegin(int, *Trainer)        {}
func (BaseCallback) OnBatchEnd(int, float64, *Trainer) {}

// SchedulerCallback is a callback that wraps a learning rate scheduler.
type SchedulerCallback struct {
	BaseCallback
	scheduler opt.Scheduler
}

func NewSchedulerCallback(scheduler opt.Scheduler) *SchedulerCallback {
	return &SchedulerCallback{scheduler: scheduler}
}

func (c *SchedulerCallback) OnEpochEnd(epoch int, loss float64, t *Trainer) {
	c.scheduler.StepWithLoss(loss)
}

// EarlyStopping stops training when the epoch loss has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	bestLoss     float64
	numBadEpochs int
	Stopped      bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.Inf(1),
	}
}

func (c *EarlyStopping) OnTrainBegin(*Trainer) {
	c.bestLoss = math.Inf(1)
	c.numBadEpochs = 0
	c.Stopped = false
}

func (c *EarlyStopping) OnEpochEnd(epoch int, loss float64, t *Trainer) {
	if loss < c.bestLoss-c.Threshold {
		c.bestLoss = loss
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		t.Logger().WithFields(logrus.Fields{
			"epoch":    epoch,
			"loss":     loss,
			"patience": c.Patience,
		}).Info("early stopping: loss did not improve")
		c.Stopped = true
		t.Stop()
	}
}

// ModelCheckpoint saves the model parameters whenever the epoch loss is the
// best so far.
type ModelCheckpoint struct {
	BaseCallback
	Filename string

	bestLoss float64
}

func NewModelCheckpoint(filename string) *ModelCheckpoint {
	return &ModelCheckpoint{
		Filename: filename,
		bestLoss: math.Inf(1),
	}
}

func (c *ModelCheckpoint) OnTrainBegin(*Trainer) {
	c.bestLoss = math.Inf(1)
}

func (c *ModelCheckpoint) OnEpochEnd(epoch int, loss float64, t *Trainer) {
	if loss >= c.bestLoss {
		return
	}
	c.bestLoss = loss
	entry := t.Logger().WithFields(logrus.Fields{"file": c.Filename, "loss": loss})
	if err := SaveFile(c.Filename, t.Model().Params()); err != nil {
		entry.WithError(err).Error("checkpoint failed")
		return
	}
	entry.Info("checkpoint saved")
}

// LogCallback logs training progress every Interval epochs.
type LogCallback struct {
	BaseCallback
	Interval int
}

func (c LogCallback) OnEpochEnd(epoch int, loss float64, t *Trainer) {
	if c.Interval > 0 && epoch%c.Interval == 0 {
		t.Logger().WithFields(logrus.Fields{
			"epoch": epoch,
			"loss":  loss,
			"lr":    t.Optimizer().LearningRate(),
		}).Info("training progress")
	}
}
