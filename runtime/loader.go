package runtime

import (
	"bufio"
	"io/fs"
	"path"
	"slices"
	"strings"

	"linkup/errors"

	"github.com/samber/lo"
)

const dictionaryExt = ".txt"

// CensoredData is the merged moderation dictionary and the languages it came from.
type CensoredData struct {
	Words     []string
	Languages []string
}

// CensoredLoader reads one word list per language, e.g. censored/fr.txt.
type CensoredLoader struct {
	fs fs.FS
}

func NewCensoredLoader(f fs.FS) *CensoredLoader {
	return &CensoredLoader{fs: f}
}

// LoadAll merges every dictionary under dir into a sorted, deduplicated word list.
func (l *CensoredLoader) LoadAll(dir string) (*CensoredData, error) {
	files, err := fs.Glob(l.fs, path.Join(dir, "*"+dictionaryExt))
	if err != nil {
		return nil, err
	}

	data := &CensoredData{}
	for _, file := range files {
		words, err := l.readWords(file)
		if err != nil {
			return nil, err
		}
		data.Languages = append(data.Languages, strings.TrimSuffix(path.Base(file), dictionaryExt))
		data.Words = append(data.Words, words...)
	}

	data.Words = lo.Uniq(data.Words)
	if len(data.Words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	slices.Sort(data.Words)
	return data, nil
}

// readWords returns the non-blank trimmed lines of a dictionary, CRLF included.
func (l *CensoredLoader) readWords(name string) ([]string, error) {
	f, err := l.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if word := strings.TrimSpace(scanner.Text()); word != "" {
			words = append(words, word)
		}
	}
	return words, scanner.Err()
}
