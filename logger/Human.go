package logger

import (
	"fmt"
	"io"
	"strings"
)

// HumanName is the name of the HumanWriter
const HumanName = "stdout"

// HumanWriter writes each dump as an aligned table
type HumanWriter struct {
	out io.Writer
}

// NewHumanWriter returns a new HumanWriter writing to out
func NewHumanWriter(out io.Writer) *HumanWriter {
	return &HumanWriter{out: out}
}

// Name implements the Writer interface
func (h *HumanWriter) Name() string {
	return HumanName
}

// Write implements the Writer interface
func (h *HumanWriter) Write(step int, keys []string,
	values map[string]float64) error {
	formatted := make([]string, len(keys))
	keyWidth, valWidth := len("step"), len(fmt.Sprint(step))
	for i, key := range keys {
		formatted[i] = fmt.Sprintf("%.4g", values[key])
		if len(key) > keyWidth {
			keyWidth = len(key)
		}
		if len(formatted[i]) > valWidth {
			valWidth = len(formatted[i])
		}
	}

	var b strings.Builder
	divider := strings.Repeat("-", keyWidth+valWidth+7)
	row := fmt.Sprintf("| %%-%ds | %%%ds |\n", keyWidth, valWidth)

	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, row, "step", fmt.Sprint(step))
	for i, key := range keys {
		fmt.Fprintf(&b, row, key, formatted[i])
	}
	b.WriteString(divider + "\n")

	_, err := io.WriteString(h.out, b.String())
	return err
}

// Close implements the Writer interface
func (h *HumanWriter) Close() error {
	return nil
}
