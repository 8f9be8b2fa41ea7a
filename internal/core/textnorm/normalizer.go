package textnorm

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

//go:embed dictionary.txt
var defaultDictionary string

//go:embed common.txt
var commonWordList string

const minCorrectableLen = 4

// Inflections that mark a token as a form of a known word rather than a typo.
var inflectionSuffixes = []string{"ing", "ed", "es", "er", "s", "ly"}

var commonWords = func() map[string]struct{} {
	out := make(map[string]struct{})
	for _, line := range strings.Split(commonWordList, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		for _, w := range strings.Fields(line) {
			out[w] = struct{}{}
		}
	}
	return out
}()

// Normalizer canonicalizes free-text fault reports. It holds no per-request state.
type Normalizer struct {
	words []string
	known map[string]struct{}
}

// New builds a normalizer over dictionary. A nil or empty dictionary disables spelling correction.
// Common English words are never corrected, whatever the dictionary holds.
func New(dictionary []string) *Normalizer {
	n := &Normalizer{
		known: make(map[string]struct{}, len(dictionary)+len(commonWords)),
	}
	for w := range commonWords {
		n.known[w] = struct{}{}
	}
	seen := make(map[string]struct{}, len(dictionary))
	for _, w := range dictionary {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		n.known[w] = struct{}{}
		n.words = append(n.words, w)
	}
	return n
}

// Default returns a normalizer over the embedded maritime vocabulary.
func Default() *Normalizer {
	words, _ := ParseDictionary(strings.NewReader(defaultDictionary))
	return New(words)
}

// LoadDictionary reads a one-word-per-line dictionary file; '#' starts a comment line.
func LoadDictionary(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()
	return ParseDictionary(f)
}

func ParseDictionary(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return words, nil
}

// Normalize trims and collapses whitespace, lower-cases and spell-corrects the matching copy,
// and title-cases a display copy. Scope is left to the caller.
func (n *Normalizer) Normalize(raw string) (domain.FaultQuery, error) {
	folded := norm.NFKC.String(raw)
	fields := strings.Fields(folded)
	if len(fields) == 0 {
		return domain.FaultQuery{}, domain.WrapError(domain.ErrEmptyInput, "normalize fault text", errors.New("fault description is empty"))
	}

	for i, f := range fields {
		fields[i] = n.correctToken(strings.ToLower(f))
	}
	normalized := strings.Join(fields, " ")

	return domain.FaultQuery{
		RawText:        raw,
		NormalizedText: normalized,
		DisplayText:    cases.Title(language.English).String(normalized),
		Equipment:      domain.EquipmentUnknown,
	}, nil
}

// correctToken replaces the alphabetic core of token with its closest dictionary word.
func (n *Normalizer) correctToken(token string) string {
	if len(n.words) == 0 {
		return token
	}
	start := strings.IndexFunc(token, unicode.IsLetter)
	if start < 0 {
		return token
	}
	end := strings.LastIndexFunc(token, unicode.IsLetter)
	_, lastSize := utf8.DecodeRuneInString(token[end:])
	core := token[start : end+lastSize]

	if !isCorrectable(core) {
		return token
	}
	if _, ok := n.known[core]; ok {
		return token
	}
	if n.isInflection(core) {
		return token
	}
	best, ok := n.closest(core)
	if !ok {
		return token
	}
	return token[:start] + best + token[end+lastSize:]
}

// isInflection reports whether word is a suffixed form of a dictionary word,
// e.g. "vibrating" next to "vibration" or "leaks" next to "leak".
func (n *Normalizer) isInflection(word string) bool {
	for _, suffix := range inflectionSuffixes {
		stem, ok := strings.CutSuffix(word, suffix)
		if !ok || utf8.RuneCountInString(stem) < 3 {
			continue
		}
		for _, w := range n.words {
			if strings.HasPrefix(w, stem) {
				return true
			}
		}
	}
	return false
}

func (n *Normalizer) closest(word string) (string, bool) {
	wordLen := utf8.RuneCountInString(word)
	maxDist := 1
	if wordLen > 7 {
		maxDist = 2
	}

	best := ""
	bestDist := maxDist + 1
	for _, candidate := range n.words {
		diff := utf8.RuneCountInString(candidate) - wordLen
		if diff > maxDist || -diff > maxDist {
			continue
		}
		if d := levenshtein.ComputeDistance(word, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best, best != ""
}

func isCorrectable(word string) bool {
	if utf8.RuneCountInString(word) < minCorrectableLen {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
