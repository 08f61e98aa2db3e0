package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/corpus"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/llm/llmtest"
)

const sentinel = "AUCUNE INFORMATION PERTINENTE"

var opts = Options{Sentinel: sentinel, NotFound: "Aucune information pertinente trouvée."}

func TestMain(m *testing.M) {
	logger.UseNop()
	m.Run()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestIsSentinel(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"AUCUNE INFORMATION PERTINENTE", true},
		{"aucune information pertinente", true},
		{"  AUCUNE INFORMATION PERTINENTE.\n", true},
		{`"AUCUNE INFORMATION PERTINENTE"`, true},
		{"`AUCUNE  INFORMATION\nPERTINENTE`", true},
		{"Article 4 : AUCUNE INFORMATION PERTINENTE sur ce point", false},
		{"Le délai de carence est de 90 jours.", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSentinel(tt.reply, sentinel))
		})
	}
	assert.False(t, IsSentinel("", ""), "an empty sentinel never matches")
}

func TestSingleCorpusAgent_Analyze(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "cardif.txt", "Article 12 : le délai de carence est de 90 jours.")
	boom := errors.New("upstream 503")

	tests := []struct {
		name          string
		path          string
		reply         string
		replyErr      error
		wantCanAnswer bool
		wantContent   string
		wantErr       error
	}{
		{
			name:          "relevant passage",
			path:          doc,
			reply:         "le délai de carence est de 90 jours.",
			wantCanAnswer: true,
			wantContent:   "CARDIF : le délai de carence est de 90 jours.",
		},
		{
			name:        "sentinel reply",
			path:        doc,
			reply:       " aucune information pertinente. ",
			wantContent: opts.NotFound,
		},
		{
			name:     "model failure",
			path:     doc,
			replyErr: boom,
			wantErr:  ErrAnalysis,
		},
		{
			name:    "missing corpus",
			path:    filepath.Join(dir, "absent.txt"),
			reply:   "never asked",
			wantErr: corpus.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &llmtest.Scripted{Default: tt.reply, DefaultErr: tt.replyErr}
			a := NewSingleCorpusAgent("cardif", "CARDIF", corpus.NewBlob(tt.path), provider, opts)

			res, err := a.Analyze(context.Background(), "Quel est le délai de carence ?")
			assert.EqualValues(t, "cardif", res.Source)
			assert.Equal(t, tt.wantCanAnswer, res.CanAnswer)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.NotEmpty(t, res.Content)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, res.Content)
		})
	}
}

func TestSingleCorpusAgent_MissingCorpusSkipsModel(t *testing.T) {
	provider := &llmtest.Scripted{Default: "x"}
	a := NewSingleCorpusAgent("cardif", "CARDIF", corpus.NewBlob(filepath.Join(t.TempDir(), "none.txt")), provider, opts)

	res, err := a.Analyze(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, res.Content, "none.txt")
	assert.Zero(t, provider.Calls())
}

func TestSingleCorpusAgent_PromptCarriesCorpusAndQuestion(t *testing.T) {
	doc := writeFile(t, t.TempDir(), "cardif.txt", "CORPUS-MARKER")
	provider := &llmtest.Scripted{Default: sentinel}
	a := NewSingleCorpusAgent("cardif", "CARDIF", corpus.NewBlob(doc), provider, opts)

	_, err := a.Analyze(context.Background(), "QUESTION-MARKER")
	require.NoError(t, err)
	require.Equal(t, 1, provider.Calls())
	prompt := provider.Prompts()[0]
	assert.Contains(t, prompt, "CORPUS-MARKER")
	assert.Contains(t, prompt, "QUESTION-MARKER")
	assert.Contains(t, prompt, sentinel)
}

func TestMultiChunkAgent_Analyze(t *testing.T) {
	boom := errors.New("quota exceeded")

	tests := []struct {
		name          string
		rules         []llmtest.Rule
		wantCanAnswer bool
		wantContent   string
		wantErr       error
	}{
		{
			name: "partial relevance with a failing chunk",
			rules: []llmtest.Rule{
				{Match: "CHUNK-A", Text: "franchise de 90 jours"},
				{Match: "CHUNK-B", Text: sentinel},
				{Match: "CHUNK-C", Err: boom},
			},
			wantCanAnswer: true,
			wantContent:   "APRIL :\nSource (a.txt): franchise de 90 jours",
		},
		{
			name: "two relevant chunks keep chunk order",
			rules: []llmtest.Rule{
				{Match: "CHUNK-A", Text: "passage A"},
				{Match: "CHUNK-B", Text: sentinel},
				{Match: "CHUNK-C", Text: "passage C"},
			},
			wantCanAnswer: true,
			wantContent:   "APRIL :\nSource (a.txt): passage A\nSource (c.txt): passage C",
		},
		{
			name: "all sentinel",
			rules: []llmtest.Rule{
				{Match: "CHUNK", Text: sentinel},
			},
			wantContent: opts.NotFound,
		},
		{
			name: "sentinel and failures",
			rules: []llmtest.Rule{
				{Match: "CHUNK-A", Text: sentinel},
				{Match: "CHUNK", Err: boom},
			},
			wantContent: opts.NotFound,
		},
		{
			name: "every chunk fails",
			rules: []llmtest.Rule{
				{Match: "CHUNK", Err: boom},
			},
			wantErr: ErrAnalysis,
		},
	}

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "CHUNK-A")
	writeFile(t, dir, "b.txt", "CHUNK-B")
	writeFile(t, dir, "c.txt", "CHUNK-C")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &llmtest.Scripted{Rules: tt.rules}
			a := NewMultiChunkAgent("april", "APRIL", corpus.NewDirSet(dir), provider, opts)

			res, err := a.Analyze(context.Background(), "Quelle franchise ?")
			assert.EqualValues(t, "april", res.Source)
			assert.Equal(t, 3, provider.Calls(), "every chunk is analyzed")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, res.CanAnswer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCanAnswer, res.CanAnswer)
			assert.Equal(t, tt.wantContent, res.Content)
		})
	}
}

func TestMultiChunkAgent_UnreadableChunkIsIsolated(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "general.txt", "CHUNK-A")
	set := corpus.NewFileSet([]string{good, filepath.Join(dir, "missing.txt")})
	provider := &llmtest.Scripted{Default: "garantie décès"}

	a := NewMultiChunkAgent("april", "APRIL", set, provider, opts)
	res, err := a.Analyze(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, res.CanAnswer)
	assert.Equal(t, "APRIL :\nSource (general.txt): garantie décès", res.Content)
	assert.Equal(t, 1, provider.Calls())
}

func TestMultiChunkAgent_MissingDirectory(t *testing.T) {
	a := NewMultiChunkAgent("april", "APRIL", corpus.NewDirSet(filepath.Join(t.TempDir(), "none")), &llmtest.Scripted{}, opts)
	res, err := a.Analyze(context.Background(), "q")
	assert.ErrorIs(t, err, corpus.ErrUnavailable)
	assert.False(t, res.CanAnswer)
}

func TestDirectAnswerAgent_Analyze(t *testing.T) {
	doc := writeFile(t, t.TempDir(), "brokins.txt", "Courtier fondé en 2015.")

	t.Run("raw reply is always answerable", func(t *testing.T) {
		a := NewDirectAnswerAgent("brokins", "BROKINS", corpus.NewBlob(doc), &llmtest.Scripted{Default: sentinel})
		res, err := a.Analyze(context.Background(), "Qui êtes-vous ?")
		require.NoError(t, err)
		assert.True(t, res.CanAnswer)
		assert.Equal(t, sentinel, res.Content)
	})

	t.Run("model failure", func(t *testing.T) {
		a := NewDirectAnswerAgent("brokins", "BROKINS", corpus.NewBlob(doc), &llmtest.Scripted{DefaultErr: errors.New("down")})
		res, err := a.Analyze(context.Background(), "Qui êtes-vous ?")
		assert.ErrorIs(t, err, ErrAnalysis)
		assert.False(t, res.CanAnswer)
	})
}
