package util

import (
	"bufio"
	"fmt"
	"os"
)

// LoadCharset reads an OCR vocabulary file, one symbol per line. Blank lines
// are kept: for CTC charsets line 0 is the reserved blank symbol.
func LoadCharset(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open charset file %s: %w", path, err)
	}
	defer file.Close()
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read charset file %s: %w", path, err)
	}
	return lines, nil
}
