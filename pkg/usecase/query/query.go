// Package query implements the retrieval-augmented query engine: date-filter
// extraction, cosine-ranked candidate retrieval and answer synthesis with a
// deterministic fallback when no language model is available.
package query

import (
	"context"
	"sort"
	"strings"

	"github.com/kyohei-s/kiroku/pkg/model"
	"github.com/kyohei-s/kiroku/pkg/repository"
	"github.com/kyohei-s/kiroku/pkg/service/embedding"
	"github.com/kyohei-s/kiroku/pkg/utils/dates"
	"github.com/kyohei-s/kiroku/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Context is one ranked record handed to the answer synthesizer.
type Context struct {
	Date    string
	Title   string
	Content string
}

// Synthesizer produces a natural-language answer from ranked contexts. An
// empty string means synthesis is unavailable and the caller should fall back
// to a deterministic summary.
type Synthesizer interface {
	Answer(ctx context.Context, question, dateFilterISO string, contexts []*Context) (string, error)
}

// Hit is one ranked query result
type Hit struct {
	ID        model.EntryID
	Date      string
	Title     string
	Content   string
	Score     float64
	HasVector bool
}

// Output is the full query response
type Output struct {
	Answer     string
	Hits       []*Hit
	Note       string
	DateFilter string // normalized ISO date, empty when no filter was found
}

// UseCase answers natural-language questions from stored entries
type UseCase struct {
	repo    repository.Repository
	gateway *embedding.Gateway
	synth   Synthesizer // nil when no language model is configured
}

func New(repo repository.Repository, gateway *embedding.Gateway, synth Synthesizer) *UseCase {
	return &UseCase{
		repo:    repo,
		gateway: gateway,
		synth:   synth,
	}
}

const (
	maxTopK = 20

	emptyQueryAnswer = "質問が空です。例: 2026/01/25に何をやった？"
	noHitsAnswer     = "該当するログが見つかりませんでした。"

	noteDisabled      = "埋め込み生成が無効です（APIキー未設定など）。"
	noteMissingVector = "一部ログは埋め込み未作成のためスコア0です（設定後に再登録すると改善します）。"
)

// Query ranks entries against text and synthesizes an answer. Provider
// failures never fail the request; they degrade scoring and are explained in
// the returned note.
func (u *UseCase) Query(ctx context.Context, text string, topK int) (*Output, error) {
	q := strings.TrimSpace(text)
	if q == "" {
		return &Output{Answer: emptyQueryAnswer}, nil
	}

	dateFilter, _ := dates.ExtractFromQuery(q)

	qVec, qKey, err := u.gateway.Embed(ctx, q)
	if err != nil {
		logging.From(ctx).Warn("query embedding failed; scores degrade to 0", "error", err)
		qVec = nil
	}
	hasEmbeddings := qVec != nil

	// Candidates come from the key of the provider that embedded the query,
	// so a quota-fallback query vector is only compared with stored fallback
	// vectors, never with remote ones.
	modelKey := qKey
	if modelKey == "" {
		modelKey = u.gateway.ModelKey()
	}

	candidates, err := u.repo.ListCandidates(ctx, dateFilter, modelKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list candidates")
	}

	hits := make([]*Hit, 0, len(candidates))
	for _, c := range candidates {
		hit := &Hit{
			ID:        c.Entry.ID,
			Date:      c.Entry.Date,
			Title:     c.Entry.Title,
			Content:   c.Entry.Content,
			HasVector: c.Vector != nil,
		}
		if hasEmbeddings && c.Vector != nil {
			hit.Score = cosineSimilarity(qVec, c.Vector)
		}
		hits = append(hits, hit)
	}

	// Highest score first; equal scores go to the higher (more recent) ID.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID > hits[j].ID
	})
	if limit := clampTopK(topK); len(hits) > limit {
		hits = hits[:limit]
	}

	contexts := make([]*Context, len(hits))
	for i, h := range hits {
		contexts[i] = &Context{Date: h.Date, Title: h.Title, Content: h.Content}
	}

	answer := u.synthesize(ctx, q, dateFilter, contexts)
	if answer == "" {
		answer = fallbackAnswer(dateFilter, contexts)
	}

	return &Output{
		Answer:     answer,
		Hits:       hits,
		Note:       buildNote(hasEmbeddings, dateFilter, hits),
		DateFilter: dateFilter,
	}, nil
}

func clampTopK(topK int) int {
	if topK < 1 {
		return 1
	}
	if topK > maxTopK {
		return maxTopK
	}
	return topK
}

func (u *UseCase) synthesize(ctx context.Context, question, dateFilter string, contexts []*Context) string {
	if u.synth == nil {
		return ""
	}
	answer, err := u.synth.Answer(ctx, question, dateFilter, contexts)
	if err != nil {
		logging.From(ctx).Warn("answer synthesis failed; using fallback summary", "error", err)
		return ""
	}
	return answer
}

// fallbackAnswer builds a deterministic summary when no synthesized answer is
// available: titles with first content lines for a date-filtered query,
// dated titles otherwise.
func fallbackAnswer(dateFilter string, contexts []*Context) string {
	if len(contexts) == 0 {
		return noHitsAnswer
	}

	lines := make([]string, len(contexts))
	for i, c := range contexts {
		if dateFilter != "" {
			lines[i] = "- " + c.Title + ": " + firstLine(c.Content)
		} else {
			lines[i] = "- [" + c.Date + "] " + c.Title
		}
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	t := strings.TrimSpace(s)
	if i := strings.Index(t, "\n"); i >= 0 {
		return t[:i]
	}
	return t
}

func buildNote(hasEmbeddings bool, dateFilter string, hits []*Hit) string {
	var parts []string
	if !hasEmbeddings {
		parts = append(parts, noteDisabled)
	}
	if dateFilter != "" {
		parts = append(parts, "日付フィルタ: "+dateFilter)
	}
	for _, h := range hits {
		if !h.HasVector {
			parts = append(parts, noteMissingVector)
			break
		}
	}
	return strings.Join(parts, " ")
}
