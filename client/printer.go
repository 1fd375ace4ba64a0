package client

import (
	"io"

	"github.com/bytedance/sonic"
	"github.com/gear6io/chprobe/pkg/errors"
)

// Printer writes the human-readable probe transcript
type Printer struct {
	out io.Writer
}

// NewPrinter returns a Printer writing to out
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Line prints msg verbatim followed by a newline
func (p *Printer) Line(msg string) error {
	if _, err := io.WriteString(p.out, msg+"\n"); err != nil {
		return errors.New(ErrOutputFailed, "failed to write output", err)
	}
	return nil
}

// Blob prints label followed by v as indented JSON with sorted keys
func (p *Printer) Blob(label string, v interface{}) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.New(ErrOutputFailed, "failed to encode output", err).AddContext("label", label)
	}
	return p.Line(label + " " + string(data))
}
