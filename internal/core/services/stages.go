package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driven"
	"github.com/archiva-labs/doclens/internal/logger"
)

// maxPromptBytes bounds the text sent to generation stages.
const maxPromptBytes = 4000

const classifyPrompt = `Classify the following legal/financial document into exactly one category:
decreto, ingiunzione, sentenza, perizia, altro.

Document:
%s

Respond ONLY with a JSON object of the form:
{"category": "...", "confidence": 0.0, "explanation": "..."}`

const entitiesPrompt = `Analyse the following text and extract the relevant information.

Text:
%s

Extract the following, verbatim as written in the text, with no normalisation:
1. Dates mentioned
2. Monetary amounts
3. Names of people
4. Organizations
5. Places
6. Statute citations and protocol/reference numbers

Respond ONLY with a JSON object of the form:
{"dates": [], "amounts": [], "people": [], "organizations": [], "locations": [], "references": []}`

const summaryPrompt = `Summarise the following text concisely and effectively, highlighting:
- the main subject
- the parties involved
- the principal decisions/conclusions
- the relevant dates

Text:
%s

Respond ONLY with a JSON object of the form (summary max 250 words):
{"summary": "...", "key_points": [], "word_count": 0}`

// Verbatim extraction patterns run locally alongside the provider.
var (
	amountPattern    = regexp.MustCompile(`(?:EUR|€)\s*(\d{1,3}(?:\.\d{3})*(?:,\d{2})?)`)
	datePattern      = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
	referencePattern = regexp.MustCompile(`(?i)(?:art\.|articolo)\s+\d+(?:\s+(?:comma|c\.)\s+\d+)?(?:\s+(?:del|della|dello|dell')\s+[^,.]+)?`)
)

// StageRunner executes individual AI analysis stages against the model
// provider. Every call is memoized by content fingerprint, bounded by
// the configured token budget and retried with exponential backoff on
// transient provider failures.
type StageRunner struct {
	cfg      domain.Config
	provider driven.ModelProvider
	cache    driven.ResultCache
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewStageRunner creates a stage runner.
func NewStageRunner(cfg domain.Config, provider driven.ModelProvider, cache driven.ResultCache) *StageRunner {
	return &StageRunner{
		cfg:      cfg,
		provider: provider,
		cache:    cache,
		sleep:    sleepCtx,
	}
}

// Fingerprint returns the deterministic cache key for a stage result:
// a hash of the stage kind, the model identifier and the content. The
// model identifier is part of the key so results never survive a model
// change.
func Fingerprint(stage domain.StageKind, model, content string) string {
	h := sha256.New()
	h.Write([]byte(string(stage)))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return string(stage) + ":" + hex.EncodeToString(h.Sum(nil))
}

// Classify assigns a document type with a confidence score. Results
// below the configured threshold are flagged low-confidence, not
// rejected; policy is the caller's.
func (r *StageRunner) Classify(ctx context.Context, text string) (*domain.Classification, error) {
	key := Fingerprint(domain.StageClassify, r.provider.ModelName(), text)
	if cached, ok := r.cache.Get(ctx, key); ok {
		if result, ok := cached.(*domain.Classification); ok {
			logger.Debug("Cache hit for classify")
			return result, nil
		}
	}

	raw, err := r.complete(ctx, domain.StageClassify, fmt.Sprintf(classifyPrompt, window(text)))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Category    string  `json:"category"`
		Confidence  float64 `json:"confidence"`
		Explanation string  `json:"explanation"`
	}
	if err := decodeResult(raw, &parsed); err != nil {
		return nil, domain.NewStageError(domain.StageClassify, err)
	}

	category := domain.DocumentType(strings.ToLower(strings.TrimSpace(parsed.Category)))
	if !category.IsValid() {
		return nil, domain.NewStageError(domain.StageClassify,
			fmt.Errorf("unknown category %q", parsed.Category))
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return nil, domain.NewStageError(domain.StageClassify,
			fmt.Errorf("confidence %v out of range", parsed.Confidence))
	}

	result := &domain.Classification{
		Category:      category,
		Confidence:    parsed.Confidence,
		Explanation:   parsed.Explanation,
		LowConfidence: parsed.Confidence < r.cfg.ClassificationThreshold,
	}

	r.cache.Put(ctx, key, result, r.cfg.TTLFor(domain.StageClassify))
	return result, nil
}

// ExtractEntities returns typed entity slots found verbatim in the
// text. Provider output is merged with local pattern extraction, then
// de-duplicated and sorted.
func (r *StageRunner) ExtractEntities(ctx context.Context, text string) (*domain.EntitySet, error) {
	key := Fingerprint(domain.StageEntities, r.provider.ModelName(), text)
	if cached, ok := r.cache.Get(ctx, key); ok {
		if result, ok := cached.(*domain.EntitySet); ok {
			logger.Debug("Cache hit for entities")
			return result, nil
		}
	}

	raw, err := r.complete(ctx, domain.StageEntities, fmt.Sprintf(entitiesPrompt, window(text)))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Dates         []string `json:"dates"`
		Amounts       []string `json:"amounts"`
		People        []string `json:"people"`
		Organizations []string `json:"organizations"`
		Locations     []string `json:"locations"`
		References    []string `json:"references"`
	}
	if err := decodeResult(raw, &parsed); err != nil {
		return nil, domain.NewStageError(domain.StageEntities, err)
	}

	result := &domain.EntitySet{
		Dates:         parsed.Dates,
		Amounts:       parsed.Amounts,
		People:        parsed.People,
		Organizations: parsed.Organizations,
		Locations:     parsed.Locations,
		References:    parsed.References,
	}
	result.Merge(patternEntities(text))

	result.Dates = dedupe(result.Dates)
	result.Amounts = dedupe(result.Amounts)
	result.People = dedupe(result.People)
	result.Organizations = dedupe(result.Organizations)
	result.Locations = dedupe(result.Locations)
	result.References = dedupe(result.References)

	r.cache.Put(ctx, key, result, r.cfg.TTLFor(domain.StageEntities))
	return result, nil
}

// Summarize produces a summary with key points.
func (r *StageRunner) Summarize(ctx context.Context, text string) (*domain.Summary, error) {
	key := Fingerprint(domain.StageSummarize, r.provider.ModelName(), text)
	if cached, ok := r.cache.Get(ctx, key); ok {
		if result, ok := cached.(*domain.Summary); ok {
			logger.Debug("Cache hit for summarize")
			return result, nil
		}
	}

	raw, err := r.complete(ctx, domain.StageSummarize, fmt.Sprintf(summaryPrompt, window(text)))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Summary   string   `json:"summary"`
		KeyPoints []string `json:"key_points"`
		WordCount int      `json:"word_count"`
	}
	if err := decodeResult(raw, &parsed); err != nil {
		return nil, domain.NewStageError(domain.StageSummarize, err)
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		return nil, domain.NewStageError(domain.StageSummarize, errors.New("empty summary"))
	}

	result := &domain.Summary{
		Text:      parsed.Summary,
		KeyPoints: parsed.KeyPoints,
		WordCount: parsed.WordCount,
	}
	if result.WordCount == 0 {
		result.WordCount = len(strings.Fields(result.Text))
	}

	r.cache.Put(ctx, key, result, r.cfg.TTLFor(domain.StageSummarize))
	return result, nil
}

// Embed generates the embedding vector for a text unit.
func (r *StageRunner) Embed(ctx context.Context, text string) ([]float32, error) {
	normalised := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))

	key := Fingerprint(domain.StageEmbed, r.provider.EmbeddingModelName(), normalised)
	if cached, ok := r.cache.Get(ctx, key); ok {
		if result, ok := cached.([]float32); ok {
			logger.Debug("Cache hit for embed")
			return result, nil
		}
	}

	var embedding []float32
	err := r.withRetry(ctx, domain.StageEmbed, func(callCtx context.Context) error {
		var callErr error
		embedding, callErr = r.provider.Embed(callCtx, normalised)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, domain.NewStageError(domain.StageEmbed, errors.New("provider returned empty embedding"))
	}

	r.cache.Put(ctx, key, embedding, r.cfg.TTLFor(domain.StageEmbed))
	return embedding, nil
}

// complete runs a generation call under the retry policy and returns
// the raw provider output.
func (r *StageRunner) complete(ctx context.Context, stage domain.StageKind, prompt string) (string, error) {
	opts := driven.CompletionOptions{
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	}

	var raw string
	err := r.withRetry(ctx, stage, func(callCtx context.Context) error {
		var callErr error
		raw, callErr = r.provider.Complete(callCtx, prompt, opts)
		return callErr
	})
	return raw, err
}

// withRetry executes fn up to the configured attempt ceiling, backing
// off exponentially from the base delay between attempts. Transient
// failures (rate limit, timeout, 5xx) are retried; everything else
// surfaces immediately. Exhaustion fails with a StageError.
func (r *StageRunner) withRetry(ctx context.Context, stage domain.StageKind, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < r.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * (1 << (attempt - 1))
			logger.Debug("Stage %s retry %d/%d after %v", stage, attempt, r.cfg.RetryAttempts-1, delay)
			if err := r.sleep(ctx, delay); err != nil {
				return domain.NewStageError(stage, err)
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if r.cfg.StageTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.cfg.StageTimeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			// The run itself was cancelled or timed out; don't retry.
			return domain.NewStageError(stage, ctx.Err())
		}
		if !retryable(err) {
			break
		}
		logger.Warn("Stage %s attempt %d failed: %v", stage, attempt+1, err)
	}

	return domain.NewStageError(stage, lastErr)
}

// retryable reports whether the provider failure is transient.
func retryable(err error) bool {
	return domain.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)
}

// sleepCtx waits for d or until the context ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// window truncates text to the generation prompt budget.
func window(text string) string {
	if len(text) > maxPromptBytes {
		return text[:maxPromptBytes]
	}
	return text
}

// decodeResult parses a provider response into a strict result struct.
// Providers occasionally wrap JSON in code fences or prose; the first
// top-level object is extracted before decoding.
func decodeResult(raw string, out any) error {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return fmt.Errorf("response contains no JSON object: %q", snippet(raw))
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

// snippet shortens a raw response for error messages.
func snippet(raw string) string {
	if len(raw) > 120 {
		return raw[:120] + "..."
	}
	return raw
}

// patternEntities runs the local verbatim extraction patterns.
func patternEntities(text string) domain.EntitySet {
	var set domain.EntitySet

	for _, match := range amountPattern.FindAllStringSubmatch(text, -1) {
		set.Amounts = append(set.Amounts, match[1])
	}
	set.Dates = append(set.Dates, datePattern.FindAllString(text, -1)...)
	for _, ref := range referencePattern.FindAllString(text, -1) {
		set.References = append(set.References, strings.TrimSpace(ref))
	}

	return set
}

// dedupe sorts and removes duplicates, dropping empty values.
func dedupe(values []string) []string {
	var cleaned []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			cleaned = append(cleaned, v)
		}
	}
	sort.Strings(cleaned)
	return slices.Compact(cleaned)
}
