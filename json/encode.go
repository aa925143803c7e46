package json

import (
	"bufio"
	"io"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Marshal encodes v as a single line of json.
func Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	return b, errors.Wrap(err, "marshaling")
}

// Encoder writes values as newline delimited json.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder returns an Encoder writing to w. Flush must be called when done.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes v followed by a newline.
func (e *Encoder) Encode(v interface{}) error {
	b, err := Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = e.w.Write(b)
	return errors.Wrap(err, "writing")
}

// Flush writes any buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	return errors.Wrap(e.w.Flush(), "flushing")
}
