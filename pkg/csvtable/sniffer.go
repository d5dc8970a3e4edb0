package csvtable

import (
	"bytes"
	"fmt"
	"io"
)

// sniffSampleSize bounds how much of the file the sniffer inspects.
const sniffSampleSize = 4096

// delimiterCandidates are the separators the sniffer considers, most common
// first. Ties go to the earlier candidate.
var delimiterCandidates = []byte{',', '\t', ';', '|'}

// DetectDelimiter guesses the field delimiter of a CSV sample. Each
// candidate is counted per line outside quoted sections; a candidate that
// appears the same nonzero number of times on every line scores highest,
// since a real delimiter splits every row into the same number of fields.
// It falls back to ',' when nothing matches.
func DetectDelimiter(sample []byte) byte {
	lines := bytes.Split(sample, []byte{'\n'})
	best := byte(',')
	bestScore := 0
	for _, delim := range delimiterCandidates {
		counts := make([]int, 0, len(lines))
		for _, line := range lines {
			line = bytes.TrimSuffix(line, []byte{'\r'})
			if len(line) == 0 {
				continue
			}
			counts = append(counts, countUnquoted(line, delim))
		}
		if len(counts) == 0 || counts[0] == 0 {
			continue
		}
		consistent := true
		for _, c := range counts[1:] {
			if c != counts[0] {
				consistent = false
				break
			}
		}
		score := counts[0]
		if consistent {
			score *= 10
		}
		if score > bestScore {
			best = delim
			bestScore = score
		}
	}
	return best
}

// countUnquoted counts occurrences of delim in line, ignoring quoted
// sections. The quote tracking is deliberately simple: the sniffer sees at
// most one truncated record, not a validated one.
func countUnquoted(line []byte, delim byte) int {
	count := 0
	inQuotes := false
	for _, b := range line {
		switch {
		case b == '"':
			inQuotes = !inQuotes
		case b == delim && !inQuotes:
			count++
		}
	}
	return count
}

// sniffDelimiter samples the start of the table's file, detects the
// delimiter, and rewinds the file for the real first read.
func (t *Table) sniffDelimiter() error {
	sample := make([]byte, sniffSampleSize)
	n, err := io.ReadFull(t.f, sample)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("csvtable: sniff %q: %w", t.path, err)
	}
	t.opts.Delimiter = DetectDelimiter(sample[:n])
	if _, err := t.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("csvtable: seek %q: %w", t.path, err)
	}
	return nil
}
