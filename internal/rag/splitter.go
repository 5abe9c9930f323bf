package rag

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into overlapping chunks no longer than Size characters,
// preferring the coarsest separator that keeps pieces under the limit.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewSplitter returns a splitter with the default separators.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Splitter{Size: size, Overlap: overlap, Separators: DefaultSeparators}
}

// Split returns the chunks of text in reading order.
func (s *Splitter) Split(text string) []string {
	var out []string
	for _, c := range s.split(text, s.Separators) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, sep)
	}

	var chunks, good []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if runeLen(p) < s.Size {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, p)
		} else {
			chunks = append(chunks, s.split(p, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good, sep)...)
	}
	return chunks
}

// merge joins small pieces back into chunks, carrying up to Overlap
// characters of trailing context into the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var (
		chunks  []string
		current []string
		total   int
	)
	joinedLen := func(n int) int {
		if len(current) > 0 {
			return total + n + sepLen
		}
		return total + n
	}

	for _, p := range pieces {
		n := runeLen(p)
		if joinedLen(n) > s.Size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, sep))
			for total > s.Overlap || (joinedLen(n) > s.Size && total > 0) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		current = append(current, p)
		if len(current) > 1 {
			total += sepLen
		}
		total += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}
	return chunks
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
