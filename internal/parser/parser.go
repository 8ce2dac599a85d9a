package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/recall/internal/domain"
)

const separator = "---"

type field int

const (
	none field = iota
	question
	answer
	context
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", question},
	{"A:", answer},
	{"C:", context},
}

// ParseFile reads a markdown file and extracts all notes.
func ParseFile(path string) ([]domain.Note, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// noteBuilder accumulates the lines of the field being read.
type noteBuilder struct {
	notes   []domain.Note
	current domain.Note
	field   field
	lines   []string
}

// flushField stores the collected lines into the current field. Trailing
// blank lines belong to the gap before the next note, not to the field.
func (b *noteBuilder) flushField() {
	for len(b.lines) > 0 && strings.TrimSpace(b.lines[len(b.lines)-1]) == "" {
		b.lines = b.lines[:len(b.lines)-1]
	}
	content := strings.Join(b.lines, "\n")
	switch b.field {
	case question:
		b.current.Question = content
	case answer:
		b.current.Answer = content
	case context:
		b.current.Context = content
	}
	b.lines = nil
}

// finishNote closes the current note. Notes without a question are dropped.
func (b *noteBuilder) finishNote() {
	b.flushField()
	if b.current.Question != "" {
		b.notes = append(b.notes, b.current)
	}
	b.current = domain.Note{}
	b.field = none
}

func (b *noteBuilder) start(f field, rest string) {
	if f == question && b.field != none {
		// A new question always starts a new note.
		b.finishNote()
	} else {
		b.flushField()
	}
	b.field = f
	b.lines = append(b.lines, strings.TrimPrefix(rest, " "))
}

// Parse reads Q:/A:/C: blocks from r. Notes are separated by a new Q: line
// or a line holding only "---"; fields may span several lines.
func Parse(r io.Reader) ([]domain.Note, error) {
	scanner := bufio.NewScanner(r)
	var b noteBuilder

scan:
	for scanner.Scan() {
		line := scanner.Text()

		if line == separator {
			b.finishNote()
			continue
		}
		for _, p := range prefixes {
			if rest, ok := strings.CutPrefix(line, p.prefix); ok {
				b.start(p.field, rest)
				continue scan
			}
		}
		if b.field != none {
			b.lines = append(b.lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	b.finishNote()
	return b.notes, nil
}
