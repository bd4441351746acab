package progressbar

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManualProgressBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewManualProgressBar(&buf, 4, 2)
	assert.Equal(t, "|    | [0.00%]", p.String())

	p.Increment()
	assert.Equal(t, "|██  | [50.00%]", p.String())

	p.Increment()
	p.Increment()
	assert.Equal(t, 1.0, p.Progress())
	assert.Equal(t, "|████| [100.00%]", p.String())

	p.Display()
	assert.Contains(t, buf.String(), "[100.00%]")
}
