// Package vocab turns raw text into fixed-length rows of token ids.
//
// Id 0 is reserved for padding and id 1 for unknown tokens in every
// encoder, matching the row layout of the embedding matrix.
package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
)

// Reserved tokens and ids.
const (
	PadToken = "<PAD>"
	UnkToken = "<UNK>"

	PadID int32 = 0
	UnkID int32 = 1
)

// Common errors.
var (
	ErrEmptyToken     = errors.New("empty token")
	ErrDuplicateToken = errors.New("duplicate token")
	ErrReservedTokens = errors.New("vocabulary must start with <PAD> and <UNK>")
)

// Vocabulary is an ordered token list with a reverse index.
type Vocabulary struct {
	tokens []string
	index  map[string]int
}

// BuildOptions controls Build.
type BuildOptions struct {
	// MinFreq drops tokens seen fewer times. Values below 1 mean 1.
	MinFreq int
	// MaxSize caps the vocabulary including the two reserved entries.
	// Zero means unlimited.
	MaxSize int
}

// New returns a vocabulary holding the reserved tokens followed by tokens.
func New(tokens ...string) (*Vocabulary, error) {
	v := &Vocabulary{
		tokens: []string{PadToken, UnkToken},
		index:  map[string]int{PadToken: 0, UnkToken: 1},
	}
	for _, tok := range tokens {
		if err := v.add(tok); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *Vocabulary) add(tok string) error {
	if tok == "" {
		return ErrEmptyToken
	}
	if _, ok := v.index[tok]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateToken, tok)
	}
	v.index[tok] = len(v.tokens)
	v.tokens = append(v.tokens, tok)
	return nil
}

// Build counts the tokens of texts and keeps the most frequent ones.
// Ties are broken lexically so the result does not depend on input order.
func Build(texts []string, opts BuildOptions) *Vocabulary {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, tok := range Tokenize(text) {
			counts[tok]++
		}
	}

	minFreq := max(opts.MinFreq, 1)
	tokens := make([]string, 0, len(counts))
	for tok, n := range counts {
		if n >= minFreq && tok != PadToken && tok != UnkToken {
			tokens = append(tokens, tok)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		ci, cj := counts[tokens[i]], counts[tokens[j]]
		if ci != cj {
			return ci > cj
		}
		return tokens[i] < tokens[j]
	})
	if opts.MaxSize > 0 {
		tokens = tokens[:min(len(tokens), max(opts.MaxSize-2, 0))]
	}

	v, _ := New(tokens...) // tokens are unique and non-empty
	return v
}

// Load reads one token per line. The first two lines must be the reserved
// tokens; blank lines are skipped.
func Load(r io.Reader) (*Vocabulary, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tok := strings.TrimRight(scanner.Text(), "\r")
		if tok == "" {
			continue
		}
		tokens = append(tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	if len(tokens) < 2 || tokens[0] != PadToken || tokens[1] != UnkToken {
		return nil, ErrReservedTokens
	}
	return New(tokens[2:]...)
}

// LoadFile reads a vocabulary from path.
func LoadFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	v, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Save writes one token per line in id order.
func (v *Vocabulary) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, tok := range v.tokens {
		if _, err := bw.WriteString(tok + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveFile writes the vocabulary to path.
func (v *Vocabulary) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := v.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Size returns the number of entries including the reserved ones.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// Index returns the row of tok.
func (v *Vocabulary) Index(tok string) (int, bool) {
	i, ok := v.index[tok]
	return i, ok
}

// ID returns the id of tok, or UnkID.
func (v *Vocabulary) ID(tok string) int32 {
	if i, ok := v.index[tok]; ok {
		return int32(i)
	}
	return UnkID
}

// Token returns the token for id, or UnkToken when out of range.
func (v *Vocabulary) Token(id int32) string {
	if id < 0 || int(id) >= len(v.tokens) {
		return UnkToken
	}
	return v.tokens[id]
}

// Tokens returns a copy of the tokens in id order.
func (v *Vocabulary) Tokens() []string {
	return append([]string(nil), v.tokens...)
}

// Tokenize lowercases text and splits it on runs of characters that are
// neither letters nor digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
