package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
)

const (
	defaultAnthropicVersion   = "2023-06-01"
	defaultAnthropicMaxTokens = 1024
)

// Anthropic talks to an Anthropic /v1/messages endpoint.
type Anthropic struct {
	Name    string
	URL     string
	APIKey  string
	Model   string
	Version string
	Client  *http.Client
}

// Generate implements Generator.
func (a *Anthropic) Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
	if a.APIKey == "" {
		return "", unavailable(a.Name, "api key not configured")
	}

	model := opts.Model
	if model == "" {
		model = a.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	req := models.AnthropicRequest{
		Model:       model,
		System:      opts.System,
		Messages:    []models.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", failure(a.Name, 0, err.Error())
	}

	version := a.Version
	if version == "" {
		version = defaultAnthropicVersion
	}
	respBody, err := post(ctx, clientOrDefault(a.Client), a.Name, a.URL, "/v1/messages",
		map[string]string{"x-api-key": a.APIKey, "anthropic-version": version}, body)
	if err != nil {
		return "", err
	}

	var resp models.AnthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", failure(a.Name, http.StatusOK, "malformed response: "+err.Error())
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", failure(a.Name, http.StatusOK, "empty completion")
	}
	return sb.String(), nil
}
