package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/topiclens/topiclens-backend/internal/model"
)

// FreeTextVerdict is the model's judgement of a single free-text answer.
type FreeTextVerdict struct {
	Correct   bool   `json:"correct"`
	Rationale string `json:"rationale"`
}

// ExtractedTopic is one topic pulled out of an uploaded curriculum.
type ExtractedTopic struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// GeneratedQuestion is one model-authored question for a topic.
type GeneratedQuestion struct {
	Text          string   `json:"text"`
	Type          string   `json:"type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// TopicResult feeds the narrative prompt with one topic's aggregate.
type TopicResult struct {
	TopicName string
	Total     int
	Correct   int
	Percent   float64
}

// NarrativeResult is the model's written summary of a completed attempt
// plus one study recommendation per topic, keyed by topic name.
type NarrativeResult struct {
	Narrative       string            `json:"narrative"`
	Recommendations map[string]string `json:"recommendations"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
	log   zerolog.Logger
}

// NewClient creates an AI client. An empty baseURL keeps the default
// OpenAI endpoint, which lets the same code talk to local
// OpenAI-compatible servers.
func NewClient(baseURL, apiKey, modelName string, log zerolog.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: modelName,
		log:   log.With().Str("component", "ai").Logger(),
	}
}

// completeJSON runs one chat completion in JSON mode and unmarshals the
// first choice into out.
func (c *Client) completeJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float32, out any) error {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return fmt.Errorf("ai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("ai returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	c.log.Debug().Str("raw", raw).Msg("ai response")

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("parse ai response: %w (raw: %s)", err, raw)
	}
	return nil
}

// GradeFreeText judges whether a free-text answer matches the reference
// answer in meaning, not wording.
func (c *Client) GradeFreeText(ctx context.Context, questionText, referenceAnswer, studentAnswer string) (*FreeTextVerdict, error) {
	var verdict FreeTextVerdict
	err := c.completeJSON(ctx,
		buildGradeSystemPrompt(questionText, referenceAnswer),
		studentAnswer, 0.1, &verdict)
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}

// ExtractTopics pulls the assessable topics out of raw curriculum text.
func (c *Client) ExtractTopics(ctx context.Context, curriculumText string) ([]ExtractedTopic, error) {
	var payload struct {
		Topics []ExtractedTopic `json:"topics"`
	}
	err := c.completeJSON(ctx, topicExtractionSystemPrompt, curriculumText, 0.2, &payload)
	if err != nil {
		return nil, err
	}
	if len(payload.Topics) == 0 {
		return nil, fmt.Errorf("ai extracted no topics")
	}
	return payload.Topics, nil
}

// GenerateQuestions authors count questions for a single topic. Questions
// the model returns with a shape the system does not support are dropped.
func (c *Client) GenerateQuestions(ctx context.Context, topic ExtractedTopic, count int) ([]GeneratedQuestion, error) {
	var payload struct {
		Questions []GeneratedQuestion `json:"questions"`
	}
	err := c.completeJSON(ctx,
		buildQuestionGenSystemPrompt(count),
		fmt.Sprintf("TOPIC: %s\n\nSUMMARY:\n%s", topic.Name, topic.Summary),
		0.7, &payload)
	if err != nil {
		return nil, err
	}

	valid := payload.Questions[:0]
	for _, q := range payload.Questions {
		if wellFormed(q) {
			valid = append(valid, canonicalize(q))
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("ai generated no usable questions for topic %q", topic.Name)
	}
	return valid, nil
}

// Narrate produces the student-facing report narrative and per-topic
// recommendations for a finished attempt.
func (c *Client) Narrate(ctx context.Context, examTitle string, score float64, results []TopicResult) (*NarrativeResult, error) {
	var out NarrativeResult
	err := c.completeJSON(ctx,
		narrativeSystemPrompt,
		buildNarrativeUserPrompt(examTitle, score, results),
		0.5, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func wellFormed(q GeneratedQuestion) bool {
	if q.Text == "" || q.CorrectAnswer == "" {
		return false
	}
	switch model.QuestionType(q.Type) {
	case model.QuestionTypeSingleSelect:
		if len(q.Options) < 2 {
			return false
		}
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				return true
			}
		}
		return false
	case model.QuestionTypeTrueFalse:
		answer := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
		return answer == "true" || answer == "false"
	case model.QuestionTypeFreeText:
		return true
	default:
		return false
	}
}

// canonicalize normalizes a generated question so it satisfies the
// option-list contract: TRUE_FALSE questions always carry the fixed
// "true"/"false" option pair with a lowercase answer, no matter how the
// model cased them.
func canonicalize(q GeneratedQuestion) GeneratedQuestion {
	if model.QuestionType(q.Type) == model.QuestionTypeTrueFalse {
		q.Options = []string{"true", "false"}
		q.CorrectAnswer = strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
	}
	return q
}
