package dataset

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
)

func TestCSVLoader(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_loader.csv")
	file, err := os.Create(filename)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	writer := csv.NewWriter(file)
	writer.Write([]string{"f1", "f2", "l1", "f3", "l2"})
	writer.Write([]string{"1.0", "2.0", "0.0", "3.0", "1.0"})
	writer.Write([]string{"4.0", "5.0", "1.0", "6.0", "0.0"})
	writer.Flush()
	file.Close()

	d, err := LoadCSV(filename, []int{4, 2}, true)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("expected 2 samples, got %d", d.Len())
	}

	expectedFeatures := [][]float64{{1, 2, 3}, {4, 5, 6}}
	expectedLabels := [][]float64{{1, 0}, {0, 1}}
	for i := 0; i < 2; i++ {
		s, err := d.Get(i)
		if err != nil {
			t.Fatal(err)
		}
		if !floats.Equal(s[0].Data(), expectedFeatures[i]) {
			t.Errorf("sample %d features = %v, expected %v", i, s[0].Data(), expectedFeatures[i])
		}
		if !floats.Equal(s[1].Data(), expectedLabels[i]) {
			t.Errorf("sample %d labels = %v, expected %v", i, s[1].Data(), expectedLabels[i])
		}
	}

	col, err := d.Column(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(col, []float64{3, 6}) {
		t.Errorf("Column(0, 2) = %v", col)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		cols []int
		want error
	}{
		{"header only", "a,b\n", []int{1}, errs.ErrInvalidArgument},
		{"label column out of range", "a,b\n1,2\n", []int{5}, errs.ErrOutOfRange},
		{"ragged row", "a,b\n1,2\n3\n", []int{1}, errs.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.doc), tt.cols, true); !errors.Is(err, tt.want) {
				t.Errorf("ReadCSV error = %v, expected %v", err, tt.want)
			}
		})
	}
	if _, err := ReadCSV(strings.NewReader("1,x\n"), nil, false); err == nil {
		t.Errorf("non-numeric value accepted")
	}
	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), nil, false); err == nil {
		t.Errorf("missing file accepted")
	}
}

func TestSplit(t *testing.T) {
	d, err := SeriesWindows([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 1)
	if err != nil {
		t.Fatal(err)
	}
	train, test := d.Split(0.8)
	if train.Len() != 8 || test.Len() != 2 {
		t.Errorf("Split(0.8) = %d/%d, expected 8/2", train.Len(), test.Len())
	}
	first, _ := test.Get(0)
	if first[0].Data()[0] != 8 {
		t.Errorf("test split starts at %v, expected 8", first[0].Data()[0])
	}
	if all, none := d.Split(1); all.Len() != 10 || none.Len() != 0 {
		t.Errorf("Split(1) = %d/%d", all.Len(), none.Len())
	}
}
