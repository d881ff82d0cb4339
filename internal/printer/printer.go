// Package printer provides user-facing CLI output, carried on the
// context so commands do not plumb writers through every call.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"
)

type ctxKey struct{}

// Printer writes user-facing messages. Status messages go to err so
// that structured output on out stays machine-readable.
type Printer struct {
	out io.Writer
	err io.Writer
}

// New creates a printer over the given writers.
func New(out, err io.Writer) *Printer {
	return &Printer{out: out, err: err}
}

// WithCtx attaches p to the context.
func WithCtx(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the printer attached to ctx, or a default stdout/stderr
// printer when none is set.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stdout, os.Stderr)
}

// Printf writes a plain line to out.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Successf writes a success line.
func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintf(p.err, "✓ "+format+"\n", args...)
}

// Infof writes an informational line.
func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintf(p.err, "• "+format+"\n", args...)
}

// Warnf writes a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintf(p.err, "! "+format+"\n", args...)
}

// Errorf writes an error line.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintf(p.err, "✗ "+format+"\n", args...)
}
