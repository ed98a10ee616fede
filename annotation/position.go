package annotation

// Position is a point in documentation text.
// 1-based line, 0-based character within the line, 0-based byte offset.
type Position struct {
	Line      int `json:"line" yaml:"line"`
	Character int `json:"character" yaml:"character"`
	Offset    int `json:"offset" yaml:"offset"`
}

// Range is a span of documentation text
type Range struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

// positionTracker walks text forward, tracking line and character
type positionTracker struct {
	source    string
	line      int
	character int
	offset    int
}

func newPositionTracker(source string) *positionTracker {
	return &positionTracker{source: source, line: 1}
}

// advanceTo moves forward to byte offset n. Offsets behind the tracker
// are ignored; annotations are scanned left to right.
func (pt *positionTracker) advanceTo(n int) Position {
	for pt.offset < n && pt.offset < len(pt.source) {
		if pt.source[pt.offset] == '\n' {
			pt.line++
			pt.character = 0
		} else {
			pt.character++
		}
		pt.offset++
	}
	return Position{Line: pt.line, Character: pt.character, Offset: pt.offset}
}
