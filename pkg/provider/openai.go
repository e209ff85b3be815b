package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
)

// OpenAI talks to an OpenAI-compatible /v1/chat/completions endpoint.
type OpenAI struct {
	Name   string
	URL    string
	APIKey string
	Model  string
	Client *http.Client
}

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
	if o.APIKey == "" {
		return "", unavailable(o.Name, "api key not configured")
	}

	model := opts.Model
	if model == "" {
		model = o.Model
	}
	req := models.ChatCompletionRequest{
		Model:       model,
		Temperature: opts.Temperature,
	}
	if opts.System != "" {
		req.Messages = append(req.Messages, models.ChatMessage{Role: "system", Content: opts.System})
	}
	req.Messages = append(req.Messages, models.ChatMessage{Role: "user", Content: prompt})
	if opts.MaxTokens > 0 {
		req.MaxTokens = &opts.MaxTokens
	}
	if opts.JSON {
		req.ResponseFormat = &models.ResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", failure(o.Name, 0, err.Error())
	}

	respBody, err := post(ctx, clientOrDefault(o.Client), o.Name, o.URL, "/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + o.APIKey}, body)
	if err != nil {
		return "", err
	}

	var resp models.ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", failure(o.Name, http.StatusOK, "malformed response: "+err.Error())
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", failure(o.Name, http.StatusOK, "empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

func clientOrDefault(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}
