// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package batchio implements the on-disk encoding of batch and result
// files. A stream is a sequence of checksummed chunks, each holding a
// run of items (or results) in their original order. A stream with
// no chunks is a valid, empty batch.
package batchio

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bigbatch"
)

// ChunkSize is the maximum number of records encoded in a single
// checksummed chunk.
const ChunkSize = 1024

// An Encoder writes items or results to an underlying io.Writer.
// Streams written by an Encoder are read by a Decoder.
type Encoder struct {
	enc *gob.Encoder
	crc hash.Hash32
	n   int64
}

// NewEncoder returns a new Encoder that writes into w.
func NewEncoder(w io.Writer) *Encoder {
	crc := crc32.NewIEEE()
	return &Encoder{
		enc: gob.NewEncoder(io.MultiWriter(w, crc)),
		crc: crc,
	}
}

// Records returns the number of records encoded so far.
func (e *Encoder) Records() int64 {
	return e.n
}

// EncodeItems encodes the provided items, in order.
func (e *Encoder) EncodeItems(items []bigbatch.Item) error {
	for len(items) > 0 {
		n := len(items)
		if n > ChunkSize {
			n = ChunkSize
		}
		if err := e.chunk(n, items[:n]); err != nil {
			return err
		}
		items = items[n:]
	}
	return nil
}

// EncodeResults encodes the provided results, in order.
func (e *Encoder) EncodeResults(results []bigbatch.Result) error {
	for len(results) > 0 {
		n := len(results)
		if n > ChunkSize {
			n = ChunkSize
		}
		if err := e.chunk(n, results[:n]); err != nil {
			return err
		}
		results = results[n:]
	}
	return nil
}

func (e *Encoder) chunk(n int, v interface{}) error {
	e.crc.Reset()
	if err := e.enc.Encode(n); err != nil {
		return err
	}
	if err := e.enc.Encode(v); err != nil {
		if strings.HasPrefix(err.Error(), "gob: ") {
			err = errors.E(errors.Fatal, err)
		}
		return err
	}
	if err := e.enc.Encode(e.crc.Sum32()); err != nil {
		return err
	}
	e.n += int64(n)
	return nil
}

// A Decoder reads streams written by an Encoder.
type Decoder struct {
	dec *gob.Decoder
	crc hash.Hash32
}

// NewDecoder returns a Decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	// Gob treats readers that implement io.ByteReader as buffered.
	// Checksums are computed on the raw byte stream, so we buffer
	// before teeing, and present an io.ByteReader to gob so that it
	// does not add buffering of its own past the tee.
	crc := crc32.NewIEEE()
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}
	r = io.TeeReader(r, crc)
	return &Decoder{dec: gob.NewDecoder(readerByteReader{Reader: r}), crc: crc}
}

// DecodeItems decodes all remaining items in the stream.
func (d *Decoder) DecodeItems() ([]bigbatch.Item, error) {
	var all []bigbatch.Item
	for {
		var chunk []bigbatch.Item
		n, err := d.chunk(&chunk)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
		if len(chunk) != n {
			return nil, errors.E(errors.Integrity, fmt.Sprintf("chunk declared %d items, decoded %d", n, len(chunk)))
		}
		all = append(all, chunk...)
	}
}

// DecodeResults decodes all remaining results in the stream.
func (d *Decoder) DecodeResults() ([]bigbatch.Result, error) {
	var all []bigbatch.Result
	for {
		var chunk []bigbatch.Result
		n, err := d.chunk(&chunk)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
		if len(chunk) != n {
			return nil, errors.E(errors.Integrity, fmt.Sprintf("chunk declared %d results, decoded %d", n, len(chunk)))
		}
		all = append(all, chunk...)
	}
}

// chunk decodes a single chunk into v, returning the declared number
// of records. io.EOF is returned only at a chunk boundary.
func (d *Decoder) chunk(v interface{}) (int, error) {
	d.crc.Reset()
	var n int
	if err := d.dec.Decode(&n); err != nil {
		return 0, err
	}
	if err := d.dec.Decode(v); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	sum := d.crc.Sum32()
	var decoded uint32
	if err := d.dec.Decode(&decoded); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	if sum != decoded {
		return 0, errors.E(errors.Integrity, fmt.Errorf("computed checksum %x but expected checksum %x", sum, decoded))
	}
	return n, nil
}

// readerByteReader is used to provide an (invalid) implementation of
// io.ByteReader to gob.Decoder. See NewDecoder for details.
type readerByteReader struct {
	io.Reader
	io.ByteReader
}
