package net

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVLogger logs training progress to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) OnTrainBegin(t *Trainer) {
	c.OnTrainEnd(t)

	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		t.Logger().WithError(err).WithField("file", c.Filename).Error("csv logger: open failed")
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		c.writer.Write([]string{"epoch", "loss", "lr", "time_seconds"})
		c.writer.Flush()
	}
}

func (c *CSVLogger) OnEpochEnd(epoch int, loss float64, t *Trainer) {
	if c.writer == nil {
		return
	}

	record := []string{
		strconv.Itoa(epoch),
		strconv.FormatFloat(loss, 'f', 6, 64),
		strconv.FormatFloat(t.Optimizer().LearningRate(), 'g', 6, 64),
		strconv.FormatFloat(time.Since(c.start).Seconds(), 'f', 2, 64),
	}
	if err := c.writer.Write(record); err != nil {
		t.Logger().WithError(err).Error("csv logger: write failed")
	}
	c.writer.Flush()
}

func (c *CSVLogger) OnTrainEnd(*Trainer) {
	if c.file != nil {
		c.writer.Flush()
		c.file.Close()
		c.file = nil
		c.writer = nil
	}
}
