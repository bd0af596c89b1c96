package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/davit-gh/speech2text-bot/internal/domain"
)

// Enricher is the text-generation boundary: reformat a raw transcript,
// or translate text into a target language.
type Enricher interface {
	Enrich(ctx context.Context, raw string) (string, error)
	Translate(ctx context.Context, text, langCode string) (string, error)
}

const enrichInstruction = "Add punctuation and paragraph breaks to the following transcript. " +
	"Keep the wording unchanged and reply with the formatted text only.\n\n"

const translateInstruction = "Translate the following text into %s. " +
	"Reply with the translation only.\n\n"

// languageNames resolves a language code to the human-readable name used
// in the translation instruction. Unknown codes pass through verbatim.
var languageNames = map[string]string{
	"ru": "Russian",
	"en": "English",
	"hy": "Armenian",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
}

func languageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

// ChatClient implements Enricher over the OpenAI chat completion API.
type ChatClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *logrus.Entry
}

// NewChatClient wraps an already-constructed API client. An empty model
// selects gpt-4o-mini.
func NewChatClient(client *openai.Client, model string, log *logrus.Entry) *ChatClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &ChatClient{
		client:  client,
		model:   model,
		timeout: 120 * time.Second,
		log:     log,
	}
}

// Enrich reformats a raw transcript into readable text.
func (c *ChatClient) Enrich(ctx context.Context, raw string) (string, error) {
	return c.complete(ctx, enrichInstruction+raw)
}

// Translate renders text into the language named by langCode.
func (c *ChatClient) Translate(ctx context.Context, text, langCode string) (string, error) {
	prompt := fmt.Sprintf(translateInstruction, languageName(langCode)) + text
	return c.complete(ctx, prompt)
}

func (c *ChatClient) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", &domain.ServiceError{Backend: "textgen", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.ServiceError{Backend: "textgen", Err: errors.New("empty completion response")}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
