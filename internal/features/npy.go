// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package features

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// .npy format constants (NumPy format version 1.0 / 2.0).
const (
	npyMagic      = "\x93NUMPY"
	npyAlign      = 64
	npyPrefixV1   = 10 // magic(6) + version(2) + header_len(2)
	npyPrefixV2   = 12 // magic(6) + version(2) + header_len(4)
	npyMaxHeader  = 1 << 20
	npyDescrF32LE = "<f4"
	npyDescrF64LE = "<f8"
)

// ErrUnsupportedNPY is returned for .npy files this reader cannot decode.
var ErrUnsupportedNPY = errors.New("unsupported npy file")

var (
	npyDescrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']+)'`)
	npyFortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// npyHeader is the parsed header dictionary.
type npyHeader struct {
	descr   string
	fortran bool
	shape   []int
}

// ReadNPY decodes a little-endian float32 or float64 .npy array in C order.
// A 1-D array of length n is returned as an n x 1 matrix.
func ReadNPY(r io.Reader) (*Matrix, error) {
	br := bufio.NewReader(r)

	hdr, err := readNPYHeader(br)
	if err != nil {
		return nil, err
	}
	if hdr.fortran {
		return nil, fmt.Errorf("%w: fortran order", ErrUnsupportedNPY)
	}

	var rows, cols int
	switch len(hdr.shape) {
	case 1:
		rows, cols = hdr.shape[0], 1
	case 2:
		rows, cols = hdr.shape[0], hdr.shape[1]
	default:
		return nil, fmt.Errorf("%w: %d dimensions", ErrUnsupportedNPY, len(hdr.shape))
	}

	n := rows * cols
	data := make([]float32, n)
	switch hdr.descr {
	case npyDescrF32LE:
		if err := binary.Read(br, binary.LittleEndian, data); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
	case npyDescrF64LE:
		buf := make([]float64, n)
		if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
		for i, v := range buf {
			data[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("%w: dtype %s", ErrUnsupportedNPY, hdr.descr)
	}

	return NewMatrix(rows, cols, data)
}

func readNPYHeader(br *bufio.Reader) (*npyHeader, error) {
	prefix := make([]byte, 8)
	if _, err := io.ReadFull(br, prefix); err != nil {
		return nil, fmt.Errorf("read npy magic: %w", err)
	}
	if string(prefix[:6]) != npyMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrUnsupportedNPY)
	}

	var headerLen int
	switch major := prefix[6]; major {
	case 1:
		var l uint16
		if err := binary.Read(br, binary.LittleEndian, &l); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(l)
	case 2, 3:
		var l uint32
		if err := binary.Read(br, binary.LittleEndian, &l); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(l)
	default:
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedNPY, major)
	}
	if headerLen <= 0 || headerLen > npyMaxHeader {
		return nil, fmt.Errorf("%w: header length %d", ErrUnsupportedNPY, headerLen)
	}

	raw := make([]byte, headerLen)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}
	return parseNPYHeader(string(raw))
}

func parseNPYHeader(s string) (*npyHeader, error) {
	h := &npyHeader{}

	m := npyDescrRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: missing descr", ErrUnsupportedNPY)
	}
	h.descr = m[1]

	if m = npyFortranRe.FindStringSubmatch(s); m != nil {
		h.fortran = m[1] == "True"
	}

	m = npyShapeRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: missing shape", ErrUnsupportedNPY)
	}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, err := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if err != nil || dim < 0 {
			return nil, fmt.Errorf("%w: bad shape %q", ErrUnsupportedNPY, m[1])
		}
		h.shape = append(h.shape, dim)
	}
	return h, nil
}

// WriteNPY encodes m as a version 1.0 little-endian float32 2-D array.
func WriteNPY(w io.Writer, m *Matrix) error {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }", npyDescrF32LE, m.rows, m.cols)

	// Pad with spaces so the data starts on a 64-byte boundary; the header
	// ends with a newline.
	total := npyPrefixV1 + len(dict) + 1
	pad := (npyAlign - total%npyAlign) % npyAlign
	header := dict + strings.Repeat(" ", pad) + "\n"
	if len(header) > math.MaxUint16 {
		return fmt.Errorf("npy header too long: %d", len(header))
	}

	var buf bytes.Buffer
	buf.WriteString(npyMagic)
	buf.WriteByte(1)
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header))) //nolint:errcheck // bytes.Buffer writes do not fail
	buf.WriteString(header)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write npy header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, m.data); err != nil {
		return fmt.Errorf("write npy data: %w", err)
	}
	return nil
}

// LoadNPY reads a .npy file from disk. A missing file is reported as ErrMissingFile.
func LoadNPY(path string) (*Matrix, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the configured feature directory
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	m, err := ReadNPY(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return m, nil
}

// SaveNPY writes m to path atomically.
func SaveNPY(path string, m *Matrix) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return WriteNPY(w, m)
	})
}
