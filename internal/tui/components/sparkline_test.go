package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestSparklineWindow(t *testing.T) {
	s := NewSparkline(3, "rps", "req/s", lipgloss.NewStyle())
	for _, v := range []float64{1, 8, 4, 2} {
		s.Add(v)
	}
	assert.Equal(t, []float64{8, 4, 2}, s.Data)
	assert.Equal(t, 8.0, s.Max)
	assert.Equal(t, 2.0, s.Last())

	lines := strings.Split(s.View(), "\n")
	assert.Equal(t, "rps  2.0 req/s", lines[0])
	assert.Equal(t, "█▄▂", lines[1])

	s.Reset()
	assert.Zero(t, s.Last())
	assert.Zero(t, s.Max)
}
