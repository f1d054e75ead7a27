package output

import "io"

// flusher matches buffered writers so streamed lines reach their
// destination as they are produced, not when the buffer fills.
type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
