package models

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Labels maps class indices to human readable names.
type Labels map[int]string

// Name returns the label for a class, or the index itself when unknown.
func (l Labels) Name(class int) string {
	if name, ok := l[class]; ok {
		return name
	}
	return strconv.Itoa(class)
}

// ReadDetectionLabels reads a label file either as "<index> <label>" lines or
// as plain lines numbered from zero. The format is decided by the first line.
// Blank lines keep their index in the plain format.
func ReadDetectionLabels(path string) (Labels, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	labels := make(Labels, len(lines))
	if len(lines) == 0 {
		return labels, nil
	}

	first, _, _ := strings.Cut(lines[0], " ")
	if _, err := strconv.Atoi(first); err == nil {
		for i, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			idx, label, ok := strings.Cut(line, " ")
			n, err := strconv.Atoi(idx)
			if !ok || err != nil {
				return nil, fmt.Errorf("%s:%d: malformed label line %q", path, i+1, line)
			}
			labels[n] = strings.TrimSpace(label)
		}
		return labels, nil
	}

	for i, line := range lines {
		labels[i] = strings.TrimSpace(line)
	}
	return labels, nil
}

// ReadClassificationLabels reads one label per line, index = line number.
func ReadClassificationLabels(path string) (Labels, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	labels := make(Labels, len(lines))
	for i, line := range lines {
		labels[i] = strings.TrimSpace(line)
	}
	return labels, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return lines, nil
}
