package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

const (
	defaultSinkBuffer = 64 * 1024
	writerQueueSize   = 256
	// maxBatch bounds how many queued lines are written between flushes.
	maxBatch = 64
)

var errWriterClosed = errors.New("logger: writer closed")

// asyncWriter moves log lines to the sinks on one goroutine. Lines queued
// together are written as a batch and flushed once.
type asyncWriter struct {
	lines   chan []byte
	flushes chan chan error
	stopped chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once

	sinks []*bufio.Writer

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = defaultSinkBuffer
	}
	w := &asyncWriter{
		lines:   make(chan []byte, writerQueueSize),
		flushes: make(chan chan error),
		stopped: make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.stopped)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.record(w.flush())
				return
			}
			w.record(w.writeBatch(line))
		case ack := <-w.flushes:
			ack <- w.flush()
		}
	}
}

// writeBatch writes first plus whatever else is already queued, then flushes.
func (w *asyncWriter) writeBatch(first []byte) error {
	err := w.write(first)
	for i := 1; i < maxBatch && err == nil; i++ {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return errors.Join(err, w.flush())
			}
			err = w.write(line)
		default:
			return errors.Join(err, w.flush())
		}
	}
	return errors.Join(err, w.flush())
}

func (w *asyncWriter) write(line []byte) error {
	for _, sink := range w.sinks {
		if _, err := sink.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, sink := range w.sinks {
		errs = append(errs, sink.Flush())
	}
	return errors.Join(errs...)
}

// Write queues a copy of p. It blocks while the queue is full; lines are never dropped.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.failure(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	line := append([]byte(nil), p...)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.lines <- line
	return nil
}

// Flush returns once every line queued before the call reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return errors.Join(<-ack, w.failure())
	case <-w.stopped:
		return w.failure()
	}
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.lines)
		w.mu.Unlock()
	})
	<-w.stopped
	return w.failure()
}

func (w *asyncWriter) failure() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) record(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
