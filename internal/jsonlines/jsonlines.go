// Package jsonlines writes JSON-lines files: one JSON document per line.
//
// Lines are written to a temporary file next to the target, which is only moved in place
// by Writer.Close. A lock file coordinates multiple processes writing the same output.
package jsonlines

import (
	"bufio"
	"encoding/json"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
	"k8s.io/klog/v2"
)

// DefaultDirCreationPerm is used when creating the directory of the output file.
var DefaultDirCreationPerm = os.FileMode(0755)

// Writer of a JSON-lines file. Create it with Create.
type Writer struct {
	path, tmpPath string
	lock          *flock.Flock

	file       *os.File
	buffered   *bufio.Writer
	compressor *xz.Writer
	encoder    *json.Encoder
	lines      int
	closed     bool
}

// Create starts writing a JSON-lines file to path. If path ends with ".xz", the output is
// xz compressed.
//
// It blocks while another process holds the lock of the same path (path+".lock").
// Lines are written to path+".tmp" until Close is called.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirCreationPerm); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for file %q", path)
	}
	w := &Writer{
		path:    path,
		tmpPath: path + ".tmp",
		lock:    flock.New(path + ".lock"),
	}
	if err := acquire(w.lock); err != nil {
		return nil, err
	}

	var err error
	w.file, err = os.Create(w.tmpPath)
	if err != nil {
		w.unlock()
		return nil, errors.Wrapf(err, "creating temporary file for output in %q", w.tmpPath)
	}
	w.buffered = bufio.NewWriter(w.file)
	var out io.Writer = w.buffered
	if strings.HasSuffix(strings.ToLower(path), ".xz") {
		w.compressor, err = xz.NewWriter(w.buffered)
		if err != nil {
			w.Abort()
			return nil, errors.Wrapf(err, "failed to create xz writer for %q", path)
		}
		out = w.compressor
	}
	w.encoder = json.NewEncoder(out)
	w.encoder.SetEscapeHTML(false)
	return w, nil
}

// acquire polls for the lock with a 1 to 2 seconds period (randomly), until it acquires it.
func acquire(lock *flock.Flock) error {
	for {
		locked, err := lock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lock.Path())
		}
		if locked {
			return nil
		}
		klog.V(1).Infof("waiting for lock %q", lock.Path())
		time.Sleep(time.Millisecond * time.Duration(1000+rand.Intn(1000)))
	}
}

// Write appends v, serialized as JSON, as one line.
func (w *Writer) Write(v any) error {
	if w.closed {
		return errors.Errorf("write to closed jsonlines.Writer for %q", w.path)
	}
	// json.Encoder terminates each value with a newline.
	if err := w.encoder.Encode(v); err != nil {
		return errors.Wrapf(err, "failed to write line %d of %q", w.lines, w.path)
	}
	w.lines++
	return nil
}

// Lines returns the number of lines written so far.
func (w *Writer) Lines() int {
	return w.lines
}

// Close flushes all lines, moves the file to its final path and releases the lock.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.unlock()

	if w.compressor != nil {
		if err := w.compressor.Close(); err != nil {
			w.discard()
			return errors.Wrapf(err, "failed to finish xz stream of %q", w.tmpPath)
		}
	}
	if err := w.buffered.Flush(); err != nil {
		w.discard()
		return errors.Wrapf(err, "failed to flush %q", w.tmpPath)
	}
	if err := w.file.Close(); err != nil {
		return errors.Wrapf(err, "failed to close temporary output file %q", w.tmpPath)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		return errors.Wrapf(err, "failed to move output file %q to %q", w.tmpPath, w.path)
	}
	return nil
}

// Abort flushes what was written to the temporary file, leaves the target path untouched
// and releases the lock. It's a no-op after Close.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	defer w.unlock()
	if w.compressor != nil {
		_ = w.compressor.Close()
	}
	_ = w.buffered.Flush()
	w.discard()
}

// discard closes the temporary file, keeping the lines written so far for inspection.
func (w *Writer) discard() {
	if err := w.file.Close(); err != nil {
		klog.Warningf("failed closing temporary file %q: %v", w.tmpPath, err)
	}
}

func (w *Writer) unlock() {
	if err := w.lock.Unlock(); err != nil {
		klog.Errorf("error unlocking file %q: %v", w.lock.Path(), err)
		return
	}
	if err := os.Remove(w.lock.Path()); err != nil && !os.IsNotExist(err) {
		klog.Warningf("error removing lock file %q: %v", w.lock.Path(), err)
	}
}
