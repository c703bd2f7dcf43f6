package net

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/layer"
)

// GGUF Constants
const (
	GGUFMagic   = 0x46554747 // "GGUF" in little-endian
	GGUFVersion = 3
)

// GGUF Value Types
type GGUFType uint32

const (
	GGUFTypeUint32  GGUFType = 4
	GGUFTypeInt32   GGUFType = 5
	GGUFTypeFloat32 GGUFType = 6
	GGUFTypeBool    GGUFType = 7
	GGUFTypeString  GGUFType = 8
	GGUFTypeUint64  GGUFType = 10
	GGUFTypeFloat64 GGUFType = 12
)

// GGML Tensor Types
type GGMLType uint32

const (
	GGMLTypeF32 GGMLType = 0
	GGMLTypeF16 GGMLType = 1
)

func (t GGMLType) elemSize() uint64 {
	if t == GGMLTypeF16 {
		return 2
	}
	return 4
}

// GGUFWriter helps writing GGUF files
type GGUFWriter struct {
	w         io.Writer
	alignment uint64
}

func NewGGUFWriter(w io.Writer) *GGUFWriter {
	return &GGUFWriter{
		w:         w,
		alignment: 32, // Default alignment
	}
}

func (gw *GGUFWriter) put(v any) error {
	return binary.Write(gw.w, binary.LittleEndian, v)
}

func (gw *GGUFWriter) WriteHeader(kvCount, tensorCount uint64) error {
	for _, v := range []any{uint32(GGUFMagic), uint32(GGUFVersion), tensorCount, kvCount} {
		if err := gw.put(v); err != nil {
			return err
		}
	}
	return nil
}

func (gw *GGUFWriter) WriteString(s string) error {
	if err := gw.put(uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(gw.w, s)
	return err
}

func (gw *GGUFWriter) WriteKV(key string, valType GGUFType, value any) error {
	if err := gw.WriteString(key); err != nil {
		return err
	}
	if err := gw.put(uint32(valType)); err != nil {
		return err
	}

	switch valType {
	case GGUFTypeUint32:
		return gw.put(value.(uint32))
	case GGUFTypeInt32:
		return gw.put(value.(int32))
	case GGUFTypeFloat32:
		return gw.put(value.(float32))
	case GGUFTypeUint64:
		return gw.put(value.(uint64))
	case GGUFTypeFloat64:
		return gw.put(value.(float64))
	case GGUFTypeBool:
		var b uint8
		if value.(bool) {
			b = 1
		}
		return gw.put(b)
	case GGUFTypeString:
		return gw.WriteString(value.(string))
	default:
		return fmt.Errorf("net: unsupported GGUF type: %v", valType)
	}
}

func (gw *GGUFWriter) WriteTensorInfo(name string, shape []uint64, ggmlType GGMLType, offset uint64) error {
	if err := gw.WriteString(name); err != nil {
		return err
	}
	rank := uint32(len(shape))
	if err := gw.put(rank); err != nil {
		return err
	}
	// GGUF dimensions are in reverse order (last dimension first)
	for i := len(shape) - 1; i >= 0; i-- {
		if err := gw.put(shape[i]); err != nil {
			return err
		}
	}
	if err := gw.put(uint32(ggmlType)); err != nil {
		return err
	}
	return gw.put(offset)
}

// Pad writes zero bytes until written is a multiple of the alignment.
func (gw *GGUFWriter) Pad(written uint64) error {
	if rem := written % gw.alignment; rem != 0 {
		_, err := gw.w.Write(make([]byte, gw.alignment-rem))
		return err
	}
	return nil
}

// Float32ToFloat16 converts a float32 to float16 (represented as uint16)
func Float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	s := uint16((bits >> 16) & 0x8000)
	e := int16((bits >> 23) & 0xFF)
	m := bits & 0x7FFFFF

	if e == 0 {
		// Zero or denormal
		return s
	} else if e == 0xFF {
		// Inf or NaN
		if m == 0 {
			return s | 0x7C00
		}
		return s | 0x7C00 | uint16(m>>13) | 1
	}

	e -= 127 - 15
	if e >= 31 {
		// Overflow to Inf
		return s | 0x7C00
	} else if e <= 0 {
		// Underflow to denormal or zero
		if e < -10 {
			return s
		}
		m |= 0x800000
		m >>= uint32(1 - e)
		return s | uint16(m>>13)
	}

	return s | uint16(e<<10) | uint16(m>>13)
}

// rnnMetadata returns the recurrent configuration keys for an RNN module.
func rnnMetadata(prefix string, cfg layer.RNNConfig) [][3]any {
	return [][3]any{
		{prefix + ".mode", GGUFTypeString, cfg.Mode.String()},
		{prefix + ".input_size", GGUFTypeUint32, uint32(cfg.InputSize)},
		{prefix + ".hidden_size", GGUFTypeUint32, uint32(cfg.HiddenSize)},
		{prefix + ".num_layers", GGUFTypeUint32, uint32(cfg.NumLayers)},
		{prefix + ".bidirectional", GGUFTypeBool, cfg.Bidirectional},
		{prefix + ".dropout", GGUFTypeFloat32, float32(cfg.DropoutProb)},
	}
}

// ExportGGUF writes the parameters of model as a GGUF file with one tensor
// per parameter, named "<module>.<param>". Recurrent modules also record
// their configuration so the flat buffer can be interpreted by a reader.
// Values are narrowed to float32 or float16 according to ggmlType.
func ExportGGUF(w io.Writer, model layer.Module, ggmlType GGMLType) error {
	if ggmlType != GGMLTypeF32 && ggmlType != GGMLTypeF16 {
		return fmt.Errorf("net: unsupported GGML tensor type %d: %w", ggmlType, errs.ErrInvalidArgument)
	}
	modules := []layer.Module{model}
	if s, ok := model.(*Sequential); ok {
		modules = s.Modules()
	}

	kvs := [][3]any{
		{"general.architecture", GGUFTypeString, "gorecurrent"},
		{"general.name", GGUFTypeString, model.Describe()},
		{"general.alignment", GGUFTypeUint32, uint32(32)},
	}
	type namedParam struct {
		name string
		p    *autograd.Variable
	}
	var params []namedParam
	for i, m := range modules {
		prefix := fmt.Sprintf("module.%d", i)
		kvs = append(kvs, [3]any{prefix + ".description", GGUFTypeString, m.Describe()})
		if r, ok := m.(*layer.RNN); ok {
			kvs = append(kvs, rnnMetadata(prefix, r.Config())...)
		}
		for j, p := range m.Params() {
			params = append(params, namedParam{fmt.Sprintf("%s.param.%d", prefix, j), p})
		}
	}

	// Header, metadata and tensor infos are buffered to learn where the
	// aligned data section begins.
	var head bytes.Buffer
	gw := NewGGUFWriter(&head)
	if err := gw.WriteHeader(uint64(len(kvs)), uint64(len(params))); err != nil {
		return err
	}
	for _, kv := range kvs {
		if err := gw.WriteKV(kv[0].(string), kv[1].(GGUFType), kv[2]); err != nil {
			return err
		}
	}
	var offset uint64
	for _, np := range params {
		shape := make([]uint64, 0, 4)
		for _, d := range np.p.Shape() {
			shape = append(shape, uint64(d))
		}
		if err := gw.WriteTensorInfo(np.name, shape, ggmlType, offset); err != nil {
			return err
		}
		size := uint64(np.p.Value().Size()) * ggmlType.elemSize()
		offset += (size + gw.alignment - 1) / gw.alignment * gw.alignment
	}
	if err := gw.Pad(uint64(head.Len())); err != nil {
		return err
	}

	if _, err := head.WriteTo(w); err != nil {
		return err
	}
	out := NewGGUFWriter(w)
	for _, np := range params {
		data := np.p.Value().Data()
		for _, v := range data {
			var err error
			if ggmlType == GGMLTypeF16 {
				err = out.put(Float32ToFloat16(float32(v)))
			} else {
				err = out.put(float32(v))
			}
			if err != nil {
				return err
			}
		}
		if err := out.Pad(uint64(len(data)) * ggmlType.elemSize()); err != nil {
			return err
		}
	}
	return nil
}
