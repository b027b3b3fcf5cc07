package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffSingleChange(t *testing.T) {
	r, err := NewEngine(1).Diff([]byte("a\nb\nc\n"), []byte("a\nB\nc\n"))
	require.NoError(t, err)

	require.Len(t, r.Hunks, 1)
	assert.Equal(t, 1, r.Stats.Additions)
	assert.Equal(t, 1, r.Stats.Deletions)
	assert.Equal(t, 2, r.Stats.Changes)
	assert.Equal(t, "@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n", r.Format())
}

func TestDiffIdentical(t *testing.T) {
	r, err := NewEngine(3).Diff([]byte("same\n"), []byte("same\n"))
	require.NoError(t, err)
	assert.Empty(t, r.Hunks)
	assert.Equal(t, "", r.Format())
}

func TestDiffFromEmpty(t *testing.T) {
	r, err := NewEngine(3).Diff(nil, []byte("x\ny\n"))
	require.NoError(t, err)
	require.Len(t, r.Hunks, 1)
	assert.Equal(t, "@@ -0,0 +1,2 @@\n+x\n+y\n", r.Format())
}

func TestDiffAppendWithoutContext(t *testing.T) {
	r, err := NewEngine(0).Diff([]byte("a\n"), []byte("a\nb\n"))
	require.NoError(t, err)
	require.Len(t, r.Hunks, 1)
	assert.Equal(t, "@@ -1,0 +2,1 @@\n+b\n", r.Format())
}

func TestDiffSeparateHunks(t *testing.T) {
	var oldLines, newLines []string
	for i := 0; i < 20; i++ {
		line := string(rune('a' + i))
		oldLines = append(oldLines, line)
		newLines = append(newLines, line)
	}
	newLines[0] = "FIRST"
	newLines[19] = "LAST"

	r, err := NewEngine(2).Diff(
		[]byte(strings.Join(oldLines, "\n")+"\n"),
		[]byte(strings.Join(newLines, "\n")+"\n"))
	require.NoError(t, err)

	require.Len(t, r.Hunks, 2)
	assert.Equal(t, 1, r.Hunks[0].OldStart)
	assert.Equal(t, 3, r.Hunks[0].OldLines)
	assert.Equal(t, 18, r.Hunks[1].OldStart)
	assert.Equal(t, 3, r.Hunks[1].OldLines)
}

func TestDiffMergesCloseChanges(t *testing.T) {
	r, err := NewEngine(2).Diff(
		[]byte("1\n2\n3\n4\n5\n6\n"),
		[]byte("1\nX\n3\n4\nY\n6\n"))
	require.NoError(t, err)
	assert.Len(t, r.Hunks, 1)
}

func TestDiffBinary(t *testing.T) {
	r, err := NewEngine(3).Diff([]byte{0, 1, 2}, []byte{0, 1, 3})
	require.NoError(t, err)
	assert.True(t, r.Binary)
	assert.Empty(t, r.Hunks)
	assert.Equal(t, "binary content differs\n", r.Format())
}
