package diff

import "bytes"

// maxCells bounds the LCS table; larger inputs are diffed as a full rewrite.
const maxCells = 16 << 20

func splitLines(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	return bytes.Split(bytes.TrimSuffix(content, []byte{'\n'}), []byte{'\n'})
}

func isBinary(content []byte) bool {
	if len(content) > 8000 {
		content = content[:8000]
	}
	return bytes.IndexByte(content, 0) >= 0
}

// buildLCSMatrix holds, at [i][j], the LCS length of oldLines[i:] and newLines[j:].
func buildLCSMatrix(oldLines, newLines [][]byte) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := len(oldLines) - 1; i >= 0; i-- {
		for j := len(newLines) - 1; j >= 0; j-- {
			if bytes.Equal(oldLines[i], newLines[j]) {
				matrix[i][j] = matrix[i+1][j+1] + 1
			} else {
				matrix[i][j] = max(matrix[i+1][j], matrix[i][j+1])
			}
		}
	}

	return matrix
}

// editScript lists every line of both inputs in output order, deletions
// ahead of additions within a change.
func editScript(oldLines, newLines [][]byte) []Line {
	script := make([]Line, 0, len(oldLines)+len(newLines))

	if len(oldLines)*len(newLines) > maxCells {
		for i, l := range oldLines {
			script = append(script, Line{Type: Deletion, Content: string(l), OldNum: i + 1})
		}
		for j, l := range newLines {
			script = append(script, Line{Type: Addition, Content: string(l), NewNum: j + 1})
		}
		return script
	}

	lcs := buildLCSMatrix(oldLines, newLines)
	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i < len(oldLines) && j < len(newLines) && bytes.Equal(oldLines[i], newLines[j]):
			script = append(script, Line{Type: Context, Content: string(oldLines[i]), OldNum: i + 1, NewNum: j + 1})
			i++
			j++
		case i < len(oldLines) && (j == len(newLines) || lcs[i+1][j] >= lcs[i][j+1]):
			script = append(script, Line{Type: Deletion, Content: string(oldLines[i]), OldNum: i + 1})
			i++
		default:
			script = append(script, Line{Type: Addition, Content: string(newLines[j]), NewNum: j + 1})
			j++
		}
	}
	return script
}
