package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/species-extractor/internal/llm"
)

// jsonObjectHint is appended to the instruction in JSON mode, where the API
// only accepts a top-level object.
const jsonObjectHint = `Devuelve un objeto JSON con la clave "especies" cuyo valor es el arreglo descrito.`

func (c *Client) Model() string { return c.cfg.Model }

// Complete implements llm.Completer using chat/completions.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	system := req.System
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
	}
	if c.cfg.TopP > 0 {
		body["top_p"] = c.cfg.TopP
	}
	if c.cfg.JSONMode {
		body["response_format"] = map[string]any{"type": "json_object"}
		system += "\n\n" + jsonObjectHint
	}
	body["messages"] = []map[string]any{
		{"role": "system", "content": system},
		{"role": "user", "content": req.User},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.openai.decode_error", "error", err, "raw_bytes", len(raw))
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.openai.no_choices", "raw", string(raw))
		return "", fmt.Errorf("no choices in openai response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}
