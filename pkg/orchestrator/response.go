package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sudokn/gptbatch/pkg/batcherr"
)

// extractCompletionText pulls the model's text reply out of a request's
// response_blob, which mirrors an OpenAI-style chat completion's
// body.choices[0].message.content.
func extractCompletionText(blob map[string]any) (string, error) {
	if blob == nil {
		return "", fmt.Errorf("%w: response_blob is nil", batcherr.ErrMalformedCompletion)
	}
	if errVal, ok := blob["error"]; ok {
		return "", fmt.Errorf("%w: request-level error in response: %v", batcherr.ErrMalformedCompletion, errVal)
	}

	body, _ := blob["body"].(map[string]any)
	choices, _ := body["choices"].([]any)
	if len(choices) == 0 {
		return "", fmt.Errorf("%w: no choices in completion body", batcherr.ErrMalformedCompletion)
	}
	choice, _ := choices[0].(map[string]any)
	message, _ := choice["message"].(map[string]any)
	content, _ := message["content"].(string)
	if content == "" {
		return "", fmt.Errorf("%w: empty completion content", batcherr.ErrMalformedCompletion)
	}
	return content, nil
}

// extractStringList parses a completion's content as a JSON array of
// strings, tolerating the common ```json fenced-block wrapper some models
// add despite being asked for bare JSON.
func extractStringList(content string) ([]string, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out []string
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("%w: decoding string list from completion: %v", batcherr.ErrMalformedCompletion, err)
	}
	return out, nil
}

// extractBool parses a completion's content as a bare true/false answer,
// also accepting a single-element JSON array or quoted string for models
// that don't follow the literal-boolean instruction exactly.
func extractBool(content string) (bool, error) {
	cleaned := strings.ToLower(strings.TrimSpace(content))
	cleaned = strings.Trim(cleaned, "`\"[] ")
	switch cleaned {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: cannot parse boolean from completion %q", batcherr.ErrMalformedCompletion, content)
	}
}
