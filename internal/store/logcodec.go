package store

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// logCompressThreshold is the payload size above which a log record is
// zstd-compressed before being written to Redis. Most records are a few
// hundred bytes; only records with long free-form details (such as a
// simulated day that lists many item ids) cross this and get compressed.
const logCompressThreshold = 1024

// compressedMarker prefixes zstd-compressed payloads so Query can tell them
// apart from the plain JSON the store wrote before this threshold existed
// and from records that never crossed it.
const compressedMarker = 0x28 // zstd frame magic's first byte, reused as a cheap sentinel

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdOnce    sync.Once
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder) {
	zstdOnce.Do(func() {
		zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		zstdDecoder, _ = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder
}

// encodeLogPayload compresses raw JSON once it's large enough to be worth
// the CPU, matching grailbio/bio's pattern of compressing on-disk records
// past a size threshold rather than unconditionally.
func encodeLogPayload(raw []byte) []byte {
	if len(raw) < logCompressThreshold {
		return raw
	}
	enc, _ := zstdCodec()
	return enc.EncodeAll(raw, nil)
}

// decodeLogPayload reverses encodeLogPayload. A zstd frame's magic number
// (0x28,0xB5,0x2F,0xFD) never starts a JSON document (which always starts
// with '{' or '['), so sniffing the first byte reliably distinguishes the
// two without a stored flag.
func decodeLogPayload(raw []byte) ([]byte, error) {
	if len(raw) < 4 || raw[0] != compressedMarker {
		return raw, nil
	}
	_, dec := zstdCodec()
	return dec.DecodeAll(raw, nil)
}
