// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package store provides storage for batch and result files. Every
// file is named by its kind and the (array element, task) pair that
// owns it, so concurrently running tasks never share a file.
package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// Kind distinguishes batch (input) files from result files.
type Kind int

const (
	// Data is the kind of batch files written by the partitioner.
	Data Kind = iota
	// Result is the kind of result files written by executors.
	Result
)

var kinds = [...]string{
	Data:   "data_batch",
	Result: "results",
}

// String returns the file name prefix used for kind k.
func (k Kind) String() string {
	return kinds[k]
}

// A Name identifies a single stored file.
type Name struct {
	Kind Kind
	// Array is the job array element that owns the file.
	Array int
	// Task is the task (rank) within the array element.
	Task int
}

// String returns the canonical file name for n, formatted as:
//
//	{n.Kind}_{n.Array}_{n.Task}
func (n Name) String() string {
	return fmt.Sprintf("%s_%d_%d", n.Kind, n.Array, n.Task)
}

// Info stores metadata for a stored file.
type Info struct {
	// Size is the encoded byte size of the stored data.
	Size int64
	// Records is the number of records in the stored data.
	Records int64
}

// A WriteCommitter represents a committable write stream into a store.
type WriteCommitter interface {
	io.Writer
	// Commit commits the written data to storage. The caller should
	// provide the number of records written as metadata.
	Commit(ctx context.Context, records int64) error
	// Discard discards the writer; it will not be committed.
	Discard(ctx context.Context) error
}

// Store is an abstraction that stores batch and result files.
type Store interface {
	// Create returns a writer that populates the named file. The data
	// are not available to Open until the writer has been committed.
	Create(ctx context.Context, name Name) (WriteCommitter, error)

	// Open returns a ReadCloser from which the stored contents of the
	// named file can be read. If the file is not stored, an error with
	// kind errors.NotExist is returned.
	Open(ctx context.Context, name Name) (io.ReadCloser, error)

	// Stat returns metadata for the named file.
	Stat(ctx context.Context, name Name) (Info, error)

	// Discard removes the named file.
	Discard(ctx context.Context, name Name) error
}

// Memory is a store implementation that keeps files in memory
// buffers. It is used in tests and for local execution.
type Memory struct {
	mu     sync.Mutex
	files  map[Name][]byte
	counts map[Name]int64
}

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{
		files:  make(map[Name][]byte),
		counts: make(map[Name]int64),
	}
}

func (m *Memory) get(name Name) ([]byte, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[name], m.counts[name]
}

func (m *Memory) put(name Name, p []byte, count int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files[name] != nil {
		return errors.E(errors.Exists, fmt.Sprintf("%s already stored", name))
	}
	if p == nil {
		p = []byte{}
	}
	m.files[name] = p
	m.counts[name] = count
	return nil
}

// Names returns the names of all files stored in m.
func (m *Memory) Names() []Name {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]Name, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	return names
}

type memoryWriter struct {
	bytes.Buffer
	name  Name
	store *Memory
}

func (*memoryWriter) Discard(context.Context) error {
	return nil
}

func (w *memoryWriter) Commit(ctx context.Context, count int64) error {
	return w.store.put(w.name, w.Buffer.Bytes(), count)
}

// Create implements Store.
func (m *Memory) Create(ctx context.Context, name Name) (WriteCommitter, error) {
	if b, _ := m.get(name); b != nil {
		return nil, errors.E(errors.Exists, fmt.Sprintf("create %s", name))
	}
	return &memoryWriter{name: name, store: m}, nil
}

// Open implements Store.
func (m *Memory) Open(ctx context.Context, name Name) (io.ReadCloser, error) {
	p, _ := m.get(name)
	if p == nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("open %s", name))
	}
	return ioutil.NopCloser(bytes.NewReader(p)), nil
}

// Stat implements Store.
func (m *Memory) Stat(ctx context.Context, name Name) (Info, error) {
	b, n := m.get(name)
	if b == nil {
		return Info{}, errors.E(errors.NotExist, fmt.Sprintf("stat %s", name))
	}
	return Info{Size: int64(len(b)), Records: n}, nil
}

// Discard implements Store.
func (m *Memory) Discard(ctx context.Context, name Name) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files[name] == nil {
		return errors.E(errors.NotExist, fmt.Sprintf("discard %s", name))
	}
	delete(m.files, name)
	delete(m.counts, name)
	return nil
}

// File is a store implementation that uses grailbio files; thus
// batches can be stored at any URL supported by package file (e.g.,
// S3). Each file carries an 8-byte trailer with its record count.
type File struct {
	// Prefix is the directory under which files are stored. A file is
	// stored at "{Prefix}/{kind}_{array}_{task}".
	Prefix string
}

// Path returns the path of the named file.
func (s *File) Path(name Name) string {
	return file.Join(s.Prefix, name.String())
}

type fileWriter struct {
	file.File
	io.Writer
}

func (w *fileWriter) Commit(ctx context.Context, count int64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(count))
	if _, err := w.Write(b[:]); err != nil {
		w.File.Discard(ctx)
		return err
	}
	return w.File.Close(ctx)
}

func (w *fileWriter) Discard(ctx context.Context) error {
	w.File.Discard(ctx)
	return nil
}

// Create implements Store. Files are written atomically: the data are
// not visible at the final path until Commit.
func (s *File) Create(ctx context.Context, name Name) (WriteCommitter, error) {
	f, err := file.Create(ctx, s.Path(name))
	if err != nil {
		return nil, err
	}
	return &fileWriter{File: f, Writer: f.Writer(ctx)}, nil
}

// Open implements Store.
func (s *File) Open(ctx context.Context, name Name) (io.ReadCloser, error) {
	f, err := file.Open(ctx, s.Path(name))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat(ctx)
	if err != nil {
		f.Close(ctx)
		return nil, err
	}
	if info.Size() < 8 {
		f.Close(ctx)
		return nil, errors.E(errors.Integrity, fmt.Sprintf("open %s: truncated file (%d bytes)", name, info.Size()))
	}
	return &fileReadCloser{
		Reader: io.LimitReader(f.Reader(ctx), info.Size()-8),
		ctx:    ctx,
		file:   f,
	}, nil
}

// Stat implements Store.
func (s *File) Stat(ctx context.Context, name Name) (Info, error) {
	f, err := file.Open(ctx, s.Path(name))
	if err != nil {
		return Info{}, err
	}
	defer f.Close(ctx)
	rs := f.Reader(ctx)
	n, err := rs.Seek(-8, io.SeekEnd)
	if err != nil {
		return Info{}, err
	}
	var b [8]byte
	if _, err := io.ReadFull(rs, b[:]); err != nil {
		return Info{}, err
	}
	return Info{
		Size:    n,
		Records: int64(binary.LittleEndian.Uint64(b[:])),
	}, nil
}

// Discard implements Store.
func (s *File) Discard(ctx context.Context, name Name) error {
	return file.Remove(ctx, s.Path(name))
}

type fileReadCloser struct {
	io.Reader
	ctx  context.Context
	file file.File
}

func (f *fileReadCloser) Close() error {
	return f.file.Close(f.ctx)
}
