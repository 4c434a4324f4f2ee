// Package completion turns the hosted language model into the two services the
// assistant needs: intent classification and free-text replies.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/config"
	"github.com/capitalize-ai/shop-assistant/internal/llm"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
	"github.com/capitalize-ai/shop-assistant/pkg/metrics"
	"github.com/capitalize-ai/shop-assistant/pkg/tracing"
)

// Static replies used when the model cannot be reached.
const (
	ApologyUnavailable   = "Xin lỗi, tôi không thể xử lý yêu cầu của bạn lúc này."
	ApologyNotConfigured = "Xin lỗi, tôi không thể xử lý yêu cầu của bạn do thiếu cấu hình API."
	ApologyEmpty         = "Xin lỗi, API không trả về phản hồi hợp lệ."
)

const (
	intentTemperature = 0.1
	replyTemperature  = 0.7
	replyMaxTokens    = 1024
	probeMaxTokens    = 100
)

// ErrNotConfigured is returned when no LLM provider is available.
var ErrNotConfigured = errors.New("completion backend not configured")

// Client wraps an llm.Client with the assistant's prompts and failure policy.
type Client struct {
	llm     llm.Client
	model   string
	prompts config.Prompts
	logger  *logger.Logger
}

// NewClient creates a completion client. A nil llm.Client is allowed; every
// call then degrades the same way a network failure would.
func NewClient(client llm.Client, modelName string, prompts config.Prompts, log *logger.Logger) *Client {
	return &Client{
		llm:     client,
		model:   modelName,
		prompts: prompts,
		logger:  log,
	}
}

// Prompts returns the templates in use.
func (c *Client) Prompts() config.Prompts {
	return c.prompts
}

// ClassifyIntent asks the model to classify text. It never fails: any
// transport, empty-output, or parse problem yields general_question.
func (c *Client) ClassifyIntent(ctx context.Context, text string) model.Intent {
	resp, err := c.complete(ctx, "classify_intent", &llm.CompletionRequest{
		Messages: []llm.ChatMessage{{
			Role:    "user",
			Content: c.intentPrompt(text),
		}},
		Temperature: intentTemperature,
	})
	if err != nil {
		c.logger.Warn("intent classification failed", zap.Error(err))
		return model.GeneralQuestion()
	}

	intent, err := ParseIntent(resp.Content)
	if err != nil {
		c.logger.Warn("unparseable intent output",
			zap.Error(err),
			zap.String("output", truncate(resp.Content, 200)),
		)
		return model.GeneralQuestion()
	}

	c.logger.Debug("intent classified",
		zap.String("intent", string(intent.Kind)),
		zap.String("sku", intent.SKU),
		zap.String("keyword", intent.Keyword),
	)
	return intent
}

// GenerateReply sends the transcript plus an optional system instruction and
// returns the model's text. On failure it returns a static apology together
// with the error so callers can choose to show the apology or not.
func (c *Client) GenerateReply(ctx context.Context, history []model.Message, systemPrompt string) (string, error) {
	if c.llm == nil {
		return ApologyNotConfigured, ErrNotConfigured
	}

	messages := make([]llm.ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		messages = append(messages, llm.ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	if len(messages) == 0 {
		messages = append(messages, llm.ChatMessage{Role: "user", Content: c.prompts.ProbeMessage})
	}

	resp, err := c.complete(ctx, "generate_reply", &llm.CompletionRequest{
		System:      systemPrompt,
		Messages:    messages,
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
	})
	if err != nil {
		c.logger.Warn("reply generation failed", zap.Error(err))
		return ApologyUnavailable, err
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return ApologyEmpty, errors.New("empty completion")
	}
	return reply, nil
}

// TestConnection sends a minimal request to verify credentials and reachability.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.complete(ctx, "test_connection", &llm.CompletionRequest{
		Messages:    []llm.ChatMessage{{Role: "user", Content: c.prompts.ProbeMessage}},
		Temperature: intentTemperature,
		MaxTokens:   probeMaxTokens,
	})
	return err
}

func (c *Client) intentPrompt(text string) string {
	if !strings.Contains(c.prompts.IntentTemplate, "%s") {
		return c.prompts.IntentTemplate + "\n\n" + text
	}
	// Only the placeholder is substituted; other % signs in the template stay literal.
	return strings.Replace(c.prompts.IntentTemplate, "%s", text, 1)
}

func (c *Client) complete(ctx context.Context, op string, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if c.llm == nil {
		return nil, ErrNotConfigured
	}
	req.Model = c.model

	ctx, span := tracing.Tracer("completion").Start(ctx, "completion."+op)
	defer span.End()

	start := time.Now()
	resp, err := c.llm.Complete(ctx, req)
	metrics.RecordRemoteCall(c.llm.Name(), op, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	metrics.RecordLLMTokens(resp.Model, resp.TokensIn, resp.TokensOut)
	return resp, nil
}

// ParseIntent extracts the first JSON object from free-form model output and
// decodes it. Unknown intent names are kept verbatim; the orchestrator treats
// them as general questions.
func ParseIntent(output string) (model.Intent, error) {
	obj, ok := ExtractJSONObject(output)
	if !ok {
		return model.GeneralQuestion(), errors.New("no JSON object in output")
	}

	var intent model.Intent
	if err := json.Unmarshal([]byte(obj), &intent); err != nil {
		return model.GeneralQuestion(), fmt.Errorf("failed to decode intent: %w", err)
	}
	if intent.Kind == "" {
		intent.Kind = model.IntentGeneralQuestion
	}
	return intent, nil
}

// ExtractJSONObject returns the first balanced top-level {...} in s, skipping
// braces inside JSON strings. If no balanced object exists it falls back to
// the span from the first '{' to the last '}'.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	end := strings.LastIndexByte(s, '}')
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
