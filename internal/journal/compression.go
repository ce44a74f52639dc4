package journal

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// CompressionType defines the compression applied to journal events.
type CompressionType int

const (
	// CompressionNone indicates no compression.
	CompressionNone CompressionType = iota
	// CompressionSnappy indicates Snappy compression.
	CompressionSnappy
	// CompressionZSTD indicates Zstandard compression.
	CompressionZSTD
)

// ParseCompressionType converts a string representation of compression
// type into the CompressionType enum.
func ParseCompressionType(t string) (CompressionType, error) {
	switch strings.ToLower(t) {
	case "none", "":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unsupported compression type: %s", t)
	}
}

func (j *Journal) compress(data []byte) ([]byte, error) {
	switch j.compression {
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	case CompressionZSTD:
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer encoder.Close()
		return encoder.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

func (j *Journal) decompress(data []byte) ([]byte, error) {
	switch j.compression {
	case CompressionSnappy:
		return snappy.Decode(nil, data)
	case CompressionZSTD:
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		return decoder.DecodeAll(data, nil)
	default:
		return data, nil
	}
}
