package corpus

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// Tokenizer turns text into token ids and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// TiktokenTokenizer resolves its encoding on first use, so building one does
// no I/O. A failed resolution is retried on the next call.
type TiktokenTokenizer struct {
	encoding string

	mu  sync.Mutex
	tke *tiktoken.Tiktoken
}

func NewTiktokenTokenizer(encoding string) *TiktokenTokenizer {
	if encoding == "" {
		encoding = defaultEncoding
	}
	return &TiktokenTokenizer{encoding: encoding}
}

func (t *TiktokenTokenizer) get() (*tiktoken.Tiktoken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tke != nil {
		return t.tke, nil
	}
	tke, err := tiktoken.GetEncoding(t.encoding)
	if err != nil {
		// Try as a model name
		tke, err = tiktoken.EncodingForModel(t.encoding)
		if err != nil {
			return nil, fmt.Errorf("tiktoken encoding %q: %w", t.encoding, err)
		}
	}
	t.tke = tke
	return tke, nil
}

// Ready resolves the encoding and reports any failure.
func (t *TiktokenTokenizer) Ready() error {
	_, err := t.get()
	return err
}

func (t *TiktokenTokenizer) Encode(text string) []int {
	tke, err := t.get()
	if err != nil {
		return nil
	}
	return tke.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) Decode(tokens []int) string {
	tke, err := t.get()
	if err != nil {
		return ""
	}
	return tke.Decode(tokens)
}

// TokenSplitter cuts a document into windows of Size tokens, consecutive
// windows sharing Overlap tokens.
type TokenSplitter struct {
	Tokenizer Tokenizer
	Size      int
	Overlap   int
}

func NewTokenSplitter(tok Tokenizer, size, overlap int) (*TokenSplitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &TokenSplitter{Tokenizer: tok, Size: size, Overlap: overlap}, nil
}

// Split returns the windows in document order. Window edges are moved to
// token boundaries that decode to whole UTF-8 characters.
func (s *TokenSplitter) Split(text string) ([]string, error) {
	if r, ok := s.Tokenizer.(interface{ Ready() error }); ok {
		if err := r.Ready(); err != nil {
			return nil, err
		}
	}
	tokens := s.Tokenizer.Encode(text)
	if len(tokens) == 0 {
		return nil, nil
	}
	var chunks []string
	for start := 0; start < len(tokens); {
		end := start + s.Size
		if end > len(tokens) {
			end = len(tokens)
		}
		for end < len(tokens) && end > start+1 && !utf8.ValidString(s.Tokenizer.Decode(tokens[start:end])) {
			end--
		}
		if chunk := strings.ToValidUTF8(s.Tokenizer.Decode(tokens[start:end]), ""); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(tokens) {
			break
		}

		next := end - s.Overlap
		for next < end && !startsWholeRune(s.Tokenizer.Decode(tokens[next:end])) {
			next++
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks, nil
}

// startsWholeRune reports whether s does not begin inside a multi-byte sequence.
func startsWholeRune(s string) bool {
	if s == "" {
		return true
	}
	r, size := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError || size != 1
}
