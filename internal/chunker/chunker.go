package chunker

import "strings"

// minChunkLen is the floor below which a semantic chunk is discarded; it
// filters near-empty fragments between adjacent declaration markers.
const minChunkLen = 50

// Piece is one chunk of a file's text. Line numbers are zero-based; for
// prose chunked by sentences they hold sentence indexes instead.
type Piece struct {
	Content   string
	StartLine int
	EndLine   int
}

// codeMarkers maps a source-file extension to the line prefixes that mark a
// top-level declaration. Reaching a marker closes the current chunk.
var codeMarkers = map[string][]string{
	".py":   {"def ", "class "},
	".js":   {"function ", "export "},
	".ts":   {"function ", "export "},
	".java": {"public ", "private "},
	".go":   {"func ", "type "},
}

// codeFamily is the set of extensions chunked by semantic units first.
var codeFamily = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".java": true,
	".cpp": true, ".go": true, ".rb": true,
}

// Chunk splits text into ordered pieces. Source files in a known code family
// are split on declaration markers, prose on sentence boundaries, and
// anything that produced no pieces falls back to fixed-size line splitting.
// It never fails: non-empty input always yields at least one piece and empty
// input yields none.
func Chunk(text, fileType string, chunkSize, overlap int) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}

	var pieces []Piece
	if codeFamily[strings.ToLower(fileType)] {
		pieces = bySemanticUnits(text, strings.ToLower(fileType), chunkSize)
	} else {
		pieces = bySentences(text, chunkSize)
	}
	if len(pieces) == 0 {
		pieces = bySize(text, chunkSize, overlap)
	}
	return pieces
}

// bySemanticUnits accumulates lines and closes the chunk when either the
// accumulated size reaches chunkSize or the line is a declaration marker for
// the file's language. Chunks shorter than minChunkLen after trimming are
// dropped.
func bySemanticUnits(text, fileType string, chunkSize int) []Piece {
	lines := strings.Split(text, "\n")
	markers := codeMarkers[fileType]

	var (
		pieces    []Piece
		current   []string
		size      int
		startLine int
	)
	for i, line := range lines {
		if len(current) > 0 {
			size++ // joining newline
		}
		current = append(current, line)
		size += len(line)

		if size >= chunkSize || isMarker(line, markers) {
			content := strings.TrimSpace(strings.Join(current, "\n"))
			if len(content) > minChunkLen {
				pieces = append(pieces, Piece{Content: content, StartLine: startLine, EndLine: i})
			}
			startLine = i
			current = current[:0]
			size = 0
		}
	}
	if len(current) > 0 {
		content := strings.TrimSpace(strings.Join(current, "\n"))
		if len(content) > minChunkLen {
			pieces = append(pieces, Piece{Content: content, StartLine: startLine, EndLine: len(lines)})
		}
	}
	return pieces
}

// bySentences splits prose on sentence-terminator-plus-space boundaries and
// packs sentences greedily up to chunkSize. Sentence indexes stand in for
// line numbers.
func bySentences(text string, chunkSize int) []Piece {
	sentences := strings.Split(text, ". ")

	var (
		pieces    []Piece
		current   strings.Builder
		startLine int
	)
	for i, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if current.Len()+len(sentence) < chunkSize {
			current.WriteString(sentence)
			current.WriteString(". ")
			continue
		}
		if current.Len() > 0 {
			pieces = append(pieces, Piece{
				Content:   strings.TrimSpace(current.String()),
				StartLine: startLine,
				EndLine:   i,
			})
			startLine = i
		}
		current.Reset()
		current.WriteString(sentence)
		current.WriteString(". ")
	}
	if strings.TrimSpace(current.String()) != "" {
		pieces = append(pieces, Piece{
			Content:   strings.TrimSpace(current.String()),
			StartLine: startLine,
			EndLine:   len(sentences),
		})
	}
	return pieces
}

// bySize is the universal fallback: pack whole lines up to chunkSize. After a
// chunk closes, the next recorded start line steps back by overlap/10 lines.
// The divisor converts the character-configured overlap into a line count and
// is kept as-is for reproducibility with previously built indexes.
func bySize(text string, chunkSize, overlap int) []Piece {
	lines := strings.Split(text, "\n")

	var (
		pieces    []Piece
		current   strings.Builder
		startLine int
	)
	for i, line := range lines {
		if current.Len()+len(line) < chunkSize {
			current.WriteString(line)
			current.WriteString("\n")
			continue
		}
		if current.Len() > 0 {
			pieces = append(pieces, Piece{
				Content:   strings.TrimSpace(current.String()),
				StartLine: startLine,
				EndLine:   i,
			})
			startLine = max(0, i-overlap/10)
		}
		current.Reset()
		current.WriteString(line)
		current.WriteString("\n")
	}
	if strings.TrimSpace(current.String()) != "" {
		pieces = append(pieces, Piece{
			Content:   strings.TrimSpace(current.String()),
			StartLine: startLine,
			EndLine:   len(lines),
		})
	}
	return pieces
}

func isMarker(line string, markers []string) bool {
	trimmed := strings.TrimSpace(line)
	for _, m := range markers {
		if strings.HasPrefix(trimmed, m) {
			return true
		}
	}
	return false
}
