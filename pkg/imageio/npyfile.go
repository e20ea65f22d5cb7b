package imageio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/sbinet/npyio"
	"github.com/sbinet/npyio/npy"
	"github.com/x448/float16"
)

// ErrUnsupportedDType is returned for .npy arrays whose element type is not
// a real number.
var ErrUnsupportedDType = errors.New("unsupported dtype")

// array is a .npy payload promoted to float64, still in file order.
type array struct {
	shape   []int
	fortran bool
	data    []float64
}

// readArray loads path. Ranks other than 1 and 2 are rejected with a
// FormatError before the payload is read.
func readArray(path string) (*array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(f)
	r, err := npy.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	descr := r.Header.Descr

	if rank := len(descr.Shape); rank != 1 && rank != 2 {
		return nil, &FormatError{Path: path, Rank: rank}
	}

	size, err := itemSize(descr.Type)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	n, err := numElements(descr.Shape)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if int64(n) > fi.Size()/int64(size) {
		return nil, fmt.Errorf("%s: header declares %d elements of %s but the file holds %d bytes",
			path, n, descr.Type, fi.Size())
	}

	data, err := promote(r, br, descr.Type, n)
	if err != nil {
		return nil, fmt.Errorf("%s: reading %d elements of %s: %w", path, n, descr.Type, err)
	}
	return &array{shape: descr.Shape, fortran: descr.Fortran, data: data}, nil
}

// numElements returns the product of shape, failing on negative
// dimensions and on overflow.
func numElements(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("invalid shape %v", shape)
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("shape %v overflows the element count", shape)
		}
		n *= d
	}
	return n, nil
}

// itemSize returns the byte width of a dtype descriptor such as "<f8".
func itemSize(descr string) (int, error) {
	if len(descr) < 3 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, descr)
	}
	size, err := strconv.Atoi(descr[2:])
	if err != nil || size < 1 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, descr)
	}
	return size, nil
}

// promote reads n elements of dtype descr and widens them to float64.
// Half precision floats are not decoded by npyio and are read from the
// payload that follows the header.
func promote(r *npy.Reader, payload io.Reader, descr string, n int) ([]float64, error) {
	switch descr[1:] {
	case "b1":
		var v []bool
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		out := make([]float64, len(v))
		for i, b := range v {
			if b {
				out[i] = 1
			}
		}
		return out, nil
	case "u1":
		var v []uint8
		return widen(r, v)
	case "i1":
		var v []int8
		return widen(r, v)
	case "u2":
		var v []uint16
		return widen(r, v)
	case "i2":
		var v []int16
		return widen(r, v)
	case "u4":
		var v []uint32
		return widen(r, v)
	case "i4":
		var v []int32
		return widen(r, v)
	case "u8":
		var v []uint64
		return widen(r, v)
	case "i8":
		var v []int64
		return widen(r, v)
	case "f4":
		var v []float32
		return widen(r, v)
	case "f8":
		var v []float64
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return v, nil
	case "f2":
		var order binary.ByteOrder = binary.LittleEndian
		if descr[0] == '>' {
			order = binary.BigEndian
		}
		bits := make([]uint16, n)
		if err := binary.Read(payload, order, bits); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, b := range bits {
			out[i] = float64(float16.Frombits(b).Float32())
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDType, descr)
}

type number interface {
	uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 | float32
}

func widen[T number](r *npy.Reader, v []T) ([]float64, error) {
	if err := r.Read(&v); err != nil {
		return nil, err
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out, nil
}

// WriteArray stores val, a slice of numbers, as a rank-1 .npy file.
func WriteArray(path string, val any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := npyio.Write(w, val); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
