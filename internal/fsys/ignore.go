package fsys

import (
	"bufio"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is read from the root of the input tree, if present.
const IgnoreFileName = ".qtgenignore"

// LoadIgnore combines the patterns of <root>/.qtgenignore with extra
// patterns from configuration. It returns nil when there are no rules.
func LoadIgnore(root string, extra []string) (*ignore.GitIgnore, error) {
	var rules []string
	lines, err := readIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	rules = append(rules, lines...)
	rules = append(rules, extra...)
	if len(rules) == 0 {
		return nil, nil
	}
	return ignore.CompileIgnoreLines(rules...), nil
}

func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
