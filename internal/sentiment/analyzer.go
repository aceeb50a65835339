// Package sentiment classifies comment texts in batches against the OpenAI
// chat API. The oracle is treated as unreliable: malformed, partial, or
// failed responses degrade individual items to a neutral fallback instead of
// failing the caller, and the output always has one result per input text.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
	"github.com/utanutan/youtube-comment-analyzer/internal/observability"
)

// Result is one classification outcome. Score ranges follow the oracle's
// convention and are not validated here.
type Result struct {
	Label  string  `json:"label"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ProgressFunc is notified with running counts after each chunk.
type ProgressFunc func(analyzed, total int)

// chatCompleter is the oracle surface used by the analyzer; *openai.Client
// satisfies it.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const (
	defaultBatchSize = 20
	defaultModel     = openai.GPT4oMini

	// pacing between chunk calls, matching the source system's throughput
	chunkPacing = 500 * time.Millisecond

	maxTextRunes   = 200
	maxReasonRunes = 30

	fallbackReasonMissing = "解析失敗"
)

const systemPrompt = "あなたは日本語テキストの感情分析の専門家です。"

type Analyzer struct {
	client    chatCompleter
	model     string
	batchSize int
	limiter   *rate.Limiter
	logger    *zerolog.Logger
}

// New creates an Analyzer backed by the OpenAI API. One Analyzer is created
// per process and reused across jobs.
func New(apiKey, model string, batchSize int, logger *zerolog.Logger) *Analyzer {
	return newAnalyzer(openai.NewClient(apiKey), model, batchSize, logger)
}

func newAnalyzer(client chatCompleter, model string, batchSize int, logger *zerolog.Logger) *Analyzer {
	if model == "" {
		model = defaultModel
	}

	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Analyzer{
		client:    client,
		model:     model,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Every(chunkPacing), 1),
		logger:    logger,
	}
}

// AnalyzeBatch classifies texts in consecutive chunks of at most batchSize,
// preserving input order. It never fails: every input position receives a
// result, degraded to the neutral fallback where the oracle could not supply
// one. Empty input yields empty output.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, texts []string, onProgress ProgressFunc) []Result {
	results := make([]Result, 0, len(texts))

	for start := 0; start < len(texts); start += a.batchSize {
		end := start + a.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		chunk := texts[start:end]

		if err := a.limiter.Wait(ctx); err != nil {
			results = append(results, fallbackChunk(len(chunk), "canceled: "+truncate(err.Error(), maxReasonRunes))...)
		} else {
			results = append(results, a.classifyChunk(ctx, chunk)...)
		}

		if onProgress != nil {
			onProgress(len(results), len(texts))
		}
	}

	return results
}

func (a *Analyzer) classifyChunk(ctx context.Context, chunk []string) []Result {
	start := time.Now()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(chunk)},
		},
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	observability.ClassifierRequestDuration.WithLabelValues(a.model).Observe(time.Since(start).Seconds())

	if err != nil {
		a.logger.Warn().Err(err).Int("chunk_size", len(chunk)).Msg("classification call failed, falling back")
		observability.ClassifierBatches.WithLabelValues(observability.OutcomeError).Inc()

		return fallbackChunk(len(chunk), "API Error: "+truncate(err.Error(), maxReasonRunes))
	}

	if len(resp.Choices) == 0 {
		observability.ClassifierBatches.WithLabelValues(observability.OutcomeError).Inc()

		return fallbackChunk(len(chunk), "API Error: empty response")
	}

	return a.alignResults(resp.Choices[0].Message.Content, chunk)
}

// alignResults merges parsed oracle items back onto chunk positions strictly
// by their declared item number; value lookup would be ambiguous under
// duplicate texts. Unfilled positions get the fallback.
func (a *Analyzer) alignResults(content string, chunk []string) []Result {
	items := parseItems(content)

	out := make([]Result, len(chunk))
	filled := make([]bool, len(chunk))

	for _, it := range items {
		idx := it.Index - 1 // prompt numbers items from 1
		if idx < 0 || idx >= len(chunk) || filled[idx] {
			continue
		}

		label := strings.ToLower(strings.TrimSpace(it.Sentiment))
		if label == "" {
			label = domain.SentimentNeutral
		}

		out[idx] = Result{Label: label, Score: it.Score, Reason: it.Reason}
		filled[idx] = true
	}

	missing := 0

	for i := range out {
		if !filled[i] {
			out[i] = fallbackResult(fallbackReasonMissing)
			missing++
		}
	}

	switch {
	case missing == len(chunk):
		observability.ClassifierBatches.WithLabelValues(observability.OutcomeError).Inc()
	case missing > 0:
		a.logger.Warn().Int("missing", missing).Int("chunk_size", len(chunk)).Msg("oracle response incomplete, filled gaps with fallback")
		observability.ClassifierBatches.WithLabelValues(observability.OutcomePartial).Inc()
	default:
		observability.ClassifierBatches.WithLabelValues(observability.OutcomeOK).Inc()
	}

	if missing > 0 {
		observability.ClassifierFallbacks.Add(float64(missing))
	}

	return out
}

func buildPrompt(chunk []string) string {
	var sb strings.Builder

	sb.WriteString("以下の日本語コメントそれぞれについて、感情を分析してください。\n\nコメント:\n")

	for i, text := range chunk {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, truncate(text, maxTextRunes)))
	}

	sb.WriteString(`
各コメントについて、以下のJSON形式で回答してください：
{"results": [
  {"index": 1, "sentiment": "positive/neutral/negative", "score": -1から1の数値, "reason": "判定理由（30文字以内）"},
  ...
]}

判定基準:
- positive: 肯定的・好意的・感謝・賞賛
- neutral: 中立的・事実記述・質問
- negative: 否定的・批判・不満・攻撃的

score: positive=0.5～1.0, neutral=-0.3～0.3, negative=-1.0～-0.5
`)

	return sb.String()
}

func fallbackChunk(n int, reason string) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i] = fallbackResult(reason)
	}

	observability.ClassifierFallbacks.Add(float64(n))

	return out
}

func fallbackResult(reason string) Result {
	return Result{Label: domain.SentimentNeutral, Score: 0.0, Reason: reason}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)

	return string(runes[:max]) + "..."
}

// batchItem is one numbered entry in the oracle's structured response.
type batchItem struct {
	Index     int     `json:"index"`
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// parseItems extracts classification items from oracle output, tolerating the
// wrapper object the prompt asks for, a bare array, an array hiding under an
// unexpected key, and markdown code fences.
func parseItems(content string) []batchItem {
	content = extractJSON(content)

	var wrapper struct {
		Results []batchItem `json:"results"`
	}

	if err := json.Unmarshal([]byte(content), &wrapper); err == nil && len(wrapper.Results) > 0 {
		return wrapper.Results
	}

	var items []batchItem
	if err := json.Unmarshal([]byte(content), &items); err == nil && len(items) > 0 {
		return items
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil
	}

	for _, v := range raw {
		arr, ok := v.([]interface{})
		if !ok || len(arr) == 0 {
			continue
		}

		arrBytes, _ := json.Marshal(v) //nolint:errchkjson // marshaling interface{} from parsed JSON, cannot fail

		if err := json.Unmarshal(arrBytes, &items); err == nil && len(items) > 0 {
			return items
		}
	}

	return nil
}

// extractJSON tries to extract JSON from a response that might have extra
// text, such as markdown fences or a preamble. Whichever bracket opens first
// decides whether an object or an array is extracted.
func extractJSON(text string) string {
	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")

	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		if end := strings.LastIndex(text, "]"); end > arrStart {
			return text[arrStart : end+1]
		}
	}

	if objStart != -1 {
		if end := strings.LastIndex(text, "}"); end > objStart {
			return text[objStart : end+1]
		}
	}

	return text
}
