// Package words holds the themed word catalogue and the masking/hint
// logic the room engine drives off it.
package words

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
)

// Catalogue serves distinct random words per theme, loaded once from JSON
// files at startup.
type Catalogue struct {
	mu     sync.RWMutex
	themes map[string][]string
}

// NewCatalogue builds an empty catalogue; call LoadTheme for each theme
// file before serving words.
func NewCatalogue() *Catalogue {
	return &Catalogue{themes: make(map[string][]string)}
}

// LoadTheme reads a JSON file of the shape {"words": ["...", ...]} into
// the named theme, appending to any words already loaded for it.
func (c *Catalogue) LoadTheme(theme, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("words: load theme %q: %w", theme, err)
	}
	var payload struct {
		Words []string `json:"words"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("words: decode theme %q: %w", theme, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.themes[theme] = append(c.themes[theme], payload.Words...)
	return nil
}

// Themes lists the catalogue's known theme names.
func (c *Catalogue) Themes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.themes))
	for t := range c.themes {
		names = append(names, t)
	}
	return names
}

// RandomWords returns n distinct words drawn uniformly from theme, plus
// any room-supplied custom words. Falls back to the "default" theme if
// the named theme is unknown or empty.
func (c *Catalogue) RandomWords(theme string, n int, custom []string) ([]string, error) {
	c.mu.RLock()
	pool := append([]string(nil), c.themes[theme]...)
	if len(pool) == 0 {
		pool = append([]string(nil), c.themes["default"]...)
	}
	c.mu.RUnlock()

	pool = append(pool, custom...)
	if len(pool) < n {
		return nil, fmt.Errorf("words: theme %q has only %d words, need %d", theme, len(pool), n)
	}

	chosen := make(map[int]bool, n)
	out := make([]string, 0, n)
	for len(out) < n {
		i, err := randIndex(len(pool))
		if err != nil {
			return nil, err
		}
		if chosen[i] {
			continue
		}
		chosen[i] = true
		out = append(out, pool[i])
	}
	return out, nil
}

func randIndex(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("words: empty pool")
	}
	max := big.NewInt(int64(n))
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0, fmt.Errorf("words: random index: %w", err)
	}
	return int(v.Int64()), nil
}

const maskPlaceholder = '_'

// Mask replaces every ASCII letter of word with the underscore
// placeholder, leaving spaces, punctuation, digits and non-ASCII
// characters untouched.
func Mask(word string) string {
	var b strings.Builder
	for _, r := range word {
		if isMaskable(r) {
			b.WriteRune(maskPlaceholder)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isMaskable(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// RevealOneHint picks a uniformly random still-masked letter position in
// masked and reveals it from word, returning the updated mask. Returns
// masked unchanged if no masked positions remain.
func RevealOneHint(word, masked string) (string, error) {
	wordRunes := []rune(word)
	maskedRunes := []rune(masked)

	var hidden []int
	for i, r := range maskedRunes {
		if r == maskPlaceholder {
			hidden = append(hidden, i)
		}
	}
	if len(hidden) == 0 {
		return masked, nil
	}

	idx, err := randIndex(len(hidden))
	if err != nil {
		return masked, err
	}
	pos := hidden[idx]
	maskedRunes[pos] = wordRunes[pos]
	return string(maskedRunes), nil
}
