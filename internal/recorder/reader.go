package recorder

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"tradecore/internal/schema"
)

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxPayloadSize  int
}

// Reader decodes tape records sequentially.
type Reader struct {
	r         *bufio.Reader
	opts      ReaderOptions
	headerBuf []byte
	payload   []byte
}

// NewReader wraps an io.Reader with tape decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		r:         bufio.NewReader(r),
		opts:      opts,
		headerBuf: make([]byte, recordHeaderSize),
	}
}

// Next returns the next record header and raw payload.
// The payload is only valid until the next call to Next.
func (r *Reader) Next() (RecordHeader, []byte, error) {
	n, err := io.ReadFull(r.r, r.headerBuf)
	if err != nil {
		if err == io.EOF && n == 0 {
			return RecordHeader{}, nil, io.EOF
		}
		return RecordHeader{}, nil, err
	}

	header, payloadLen, err := decodeRecordHeader(r.headerBuf)
	if err != nil {
		return header, nil, err
	}
	if r.opts.MaxPayloadSize > 0 && payloadLen > uint32(r.opts.MaxPayloadSize) {
		return header, nil, ErrPayloadTooLarge
	}

	if cap(r.payload) < int(payloadLen) {
		r.payload = make([]byte, payloadLen)
	}
	r.payload = r.payload[:payloadLen]
	if _, err := io.ReadFull(r.r, r.payload); err != nil {
		return header, nil, err
	}

	var checksumBuf [recordChecksumSize]byte
	if _, err := io.ReadFull(r.r, checksumBuf[:]); err != nil {
		return header, nil, err
	}
	if !r.opts.DisableChecksum {
		if binary.LittleEndian.Uint32(checksumBuf[:]) != checksum(r.headerBuf, r.payload) {
			return header, nil, errors.Wrapf(ErrChecksumMismatch, "seq: %d", header.Seq)
		}
	}

	return header, r.payload, nil
}

// NextTick returns the next record decoded as a tick.
func (r *Reader) NextTick() (RecordHeader, schema.Tick, error) {
	header, payload, err := r.Next()
	if err != nil {
		return header, schema.Tick{}, err
	}
	var tick schema.Tick
	if err := sonic.ConfigFastest.Unmarshal(payload, &tick); err != nil {
		return header, schema.Tick{}, fmt.Errorf("decode tick, seq: %d, err: %w", header.Seq, err)
	}
	return header, tick, nil
}
