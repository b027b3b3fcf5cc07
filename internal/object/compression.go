// internal/object/compression.go
package object

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// CompressionOptions configures blob compression
type CompressionOptions struct {
	// Minimum payload size in bytes before compressing; 0 disables compression
	MinSize int `json:"min_size"`
	// zstd level (1=fastest, 4=best)
	Level int `json:"level"`
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 1024,
		Level:   2,
	}
}

// compressor pools zstd encoders and decoders across goroutines.
type compressor struct {
	opts     CompressionOptions
	encoders sync.Pool
	decoders sync.Pool
}

func newCompressor(opts CompressionOptions) (*compressor, error) {
	level := zstd.EncoderLevelFromZstd(opts.Level)

	// validate options once up front; pool constructors cannot report errors
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	c := &compressor{opts: opts}
	c.encoders.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
		return enc
	}
	c.decoders.New = func() interface{} {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}
	c.encoders.Put(enc)
	c.decoders.Put(dec)
	return c, nil
}

func (c *compressor) shouldCompress(size int) bool {
	return c.opts.MinSize > 0 && size >= c.opts.MinSize
}

// compress returns the encoded payload and whether encoding was applied.
// Payloads that do not shrink are stored raw.
func (c *compressor) compress(content []byte) ([]byte, bool) {
	if !c.shouldCompress(len(content)) {
		return content, false
	}

	enc := c.encoders.Get().(*zstd.Encoder)
	defer c.encoders.Put(enc)

	out := enc.EncodeAll(content, make([]byte, 0, len(content)/2))
	if len(out) >= len(content) {
		return content, false
	}
	return out, true
}

func (c *compressor) decompress(content []byte) ([]byte, error) {
	dec := c.decoders.Get().(*zstd.Decoder)
	defer c.decoders.Put(dec)

	out, err := dec.DecodeAll(content, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

// close releases pooled encoders and decoders.
func (c *compressor) close() {
	c.encoders.New = nil
	c.decoders.New = nil
	for {
		enc, ok := c.encoders.Get().(*zstd.Encoder)
		if !ok || enc == nil {
			break
		}
		enc.Close()
	}
	for {
		dec, ok := c.decoders.Get().(*zstd.Decoder)
		if !ok || dec == nil {
			break
		}
		dec.Close()
	}
}
