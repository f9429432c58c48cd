// Package answer synthesizes natural-language answers from ranked journal
// contexts via the Gemini API.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/kyohei-s/kiroku/pkg/adapter"
	"github.com/kyohei-s/kiroku/pkg/usecase/query"
	"github.com/kyohei-s/kiroku/pkg/utils/remote"
	"google.golang.org/genai"
)

const systemPrompt = "あなたは個人の作業ログ(日本語)を参照して質問に答えるアシスタントです。" +
	" 推測で事実を作らず、ログにないことは『不明』と明示してください。"

// GeminiSynthesizer implements query.Synthesizer on top of the Gemini chat
// model. Calls are serialized and retried like every other remote call.
type GeminiSynthesizer struct {
	client adapter.Gemini
	queue  *remote.Queue
	policy remote.Policy
}

func NewGemini(client adapter.Gemini) *GeminiSynthesizer {
	return &GeminiSynthesizer{
		client: client,
		queue:  remote.NewQueue(),
		policy: remote.Policy{
			Retryable: adapter.IsTransient,
		},
	}
}

func (s *GeminiSynthesizer) Answer(ctx context.Context, question, dateFilterISO string, contexts []*query.Context) (string, error) {
	prompt := buildPrompt(question, dateFilterISO, contexts)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
		Temperature:       genai.Ptr[float32](0.2),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := remote.Do(ctx, s.queue, s.policy, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return s.client.GenerateContent(ctx, contents, config)
	})
	if err != nil {
		return "", err
	}

	return responseText(resp), nil
}

func buildPrompt(question, dateFilterISO string, contexts []*query.Context) string {
	blocks := make([]string, len(contexts))
	for i, c := range contexts {
		blocks[i] = fmt.Sprintf("# ログ%d\n日付: %s\nタイトル: %s\n内容:\n%s", i+1, c.Date, c.Title, c.Content)
	}

	var sb strings.Builder
	sb.WriteString("質問: " + question + "\n")
	if dateFilterISO != "" {
		sb.WriteString("\n指定日(ISO): " + dateFilterISO + "\nこの日付のログを優先して、何をやったかを箇条書きで簡潔にまとめてください。\n")
	} else {
		sb.WriteString("\n関連するログを根拠に、要点を箇条書きでまとめ、最後に短い結論を1-2文で書いてください。\n")
	}
	sb.WriteString("\n参照ログ:\n" + strings.Join(blocks, "\n\n"))
	return sb.String()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
