package livetypes

import (
	"io"
)

// remembers a read error from the wrapped reader, so callers that pass the reader
// to io.Copy can tell read failures apart from write failures
type ReadErrorRecorder struct {
	reader io.Reader
	Err    error
}

func NewReadErrorRecorder(reader io.Reader) *ReadErrorRecorder {
	return &ReadErrorRecorder{reader: reader}
}

func (r *ReadErrorRecorder) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if err != nil && err != io.EOF {
		r.Err = err
	}
	return n, err
}
