// Package genai classifies free-text WhatsApp messages into structured
// parking commands using the OpenAI API.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/parkeasy/parkeasy/internal/models"
)

// Classifier turns a raw message into an intent envelope. Implementations
// must return a fallback intent rather than an error for unclassifiable
// text; errors are reserved for transport failures.
type Classifier interface {
	ClassifyIntent(ctx context.Context, role models.Role, text string) (models.IntentResult, error)
	HelpMessage(ctx context.Context, role models.Role, language string) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the chat model used for classification.
	Model string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client openai.Client
	model  string
}

// NewClient initializes a GenAI client. Falls back to the OPENAI_API_KEY
// environment variable when no key option is given.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	slog.Debug("GenAI client created", "model", cfg.Model)
	return &Client{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

const intentSystemPrompt = `You are the command parser for ParkEasy, a WhatsApp parking lot assistant used in India. Messages may be in English, Hindi, or Hinglish.

Classify the user's message into exactly one intent and extract its parameters. Respond with ONLY a JSON object, no prose, no markdown.

Intents available to attendants and owners:
- vehicle_check_in: park a vehicle. Params: vehicle_number.
- vehicle_checkout: check out one or more vehicles. Params: identifiers (array of vehicle numbers or list positions).
- get_status: how many vehicles are inside.
- list_vehicles: list vehicles currently inside.
- get_help: the user asks what they can do.
- show_menu: the user asks for the menu.

Intents available to owners only:
- add_pass: create a pass. Params: vehicle_number, duration_days (optional), customer_number (optional).
- remove_pass: revoke a pass. Params: vehicle_number.
- view_passes: list active passes.
- add_attendant: register staff. Params: attendant_name, attendant_number.
- remove_attendant / manage_attendant: deactivate or delete staff. Params: identifier (list position or phone number).
- activate_attendant: reactivate staff. Params: identifier.
- list_attendants: list staff. Params: filter ("all" to include inactive).
- get_report: daily report. Params: date_period ("today" or "yesterday").
- set_pricing_model: Params: model_type (TIERED, BLOCK or HOURLY).
- set_tiered_rate: Params: hours, fee.
- set_flat_rate: Params: rate_type ("block" or "hourly"), fee, hours (for block).
- set_pass_rate: Params: fee.
- view_rates: show the current rate card.

Admin intents (only when the admin asks):
- admin_start_subscription: Params: owner_name, owner_number, lot_name, plan_name, duration_days.
- admin_list_owners
- admin_disable_owner: Params: owner_number.
- admin_broadcast_message: Params: target_group, broadcast_text.
- admin_system_status

Always include a "language" field: "hi" if the user wrote mainly in Hindi, otherwise "en". Indian vehicle numbers look like GJ05RT1234; uppercase them and strip spaces. Phone numbers keep digits only.

If the message matches no intent, respond with {"intent":"fallback","text":"<the original message>"}.`

// ClassifyIntent classifies a message into a structured intent. Transport
// failures and unparseable replies both degrade to the fallback intent so a
// flaky model never breaks message handling.
func (c *Client) ClassifyIntent(ctx context.Context, role models.Role, text string) (models.IntentResult, error) {
	userPrompt := fmt.Sprintf("Sender role: %s\nMessage: %s", role, text)
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(intentSystemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		slog.Error("GenAI ClassifyIntent request failed", "error", err)
		return models.FallbackIntent(text), nil
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI ClassifyIntent returned no choices")
		return models.FallbackIntent(text), nil
	}
	result := parseIntentResult(resp.Choices[0].Message.Content, text)
	slog.Debug("GenAI ClassifyIntent succeeded", "intent", result.Intent, "language", result.Language)
	return result, nil
}

// parseIntentResult decodes the model's JSON reply, tolerating markdown code
// fences. Anything undecodable becomes the fallback intent carrying the
// original message.
func parseIntentResult(raw, original string) models.IntentResult {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result models.IntentResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		slog.Warn("GenAI intent reply not parseable", "error", err, "raw", raw)
		return models.FallbackIntent(original)
	}
	if result.Intent == "" {
		return models.FallbackIntent(original)
	}
	return result
}

// HelpMessage generates a short capability summary for the user's role, in
// their language.
func (c *Client) HelpMessage(ctx context.Context, role models.Role, language string) (string, error) {
	systemPrompt := fmt.Sprintf(`You are the help writer for ParkEasy, a WhatsApp parking assistant. Write a short friendly WhatsApp message (under 120 words, use * for bold) telling a %s what they can do. Attendants: park vehicles by sending a number plate, check out with OUT <plate>, LIST, STATUS, PASS <plate>. Owners additionally: rates, passes, staff and daily reports. Reply in %s.`, role, languageName(language))
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage("What can I do here?"),
		},
	})
	if err != nil {
		slog.Error("GenAI HelpMessage request failed", "error", err)
		return "", fmt.Errorf("failed to generate help message: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func languageName(code string) string {
	if code == "hi" {
		return "Hindi"
	}
	return "English"
}
