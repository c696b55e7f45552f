package tlsengine

import (
	"bytes"
	"compress/flate"
	"io"

	dflate "github.com/dsnet/compress/flate"
)

// Record-layer compression methods.
const (
	compressionNull    uint8 = 0
	compressionDeflate uint8 = 1
)

// DeflateCompressor returns a deflate callback suitable for
// Config.Deflate.
func DeflateCompressor() func([]byte) ([]byte, error) {
	return func(in []byte) ([]byte, error) {
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(in); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// InflateDecompressor returns an inflate callback suitable for
// Config.Inflate.
func InflateDecompressor() func([]byte) ([]byte, error) {
	return func(in []byte) ([]byte, error) {
		r, err := dflate.NewReader(bytes.NewReader(in), nil)
		if err != nil {
			return nil, err
		}
		out, err := io.ReadAll(r)
		if cerr := r.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}
