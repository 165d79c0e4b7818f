package orchestrator

import "fmt"

// Prompt templates are intentionally minimal — each one instructs the
// provider model how to answer and what shape to answer in, without
// embedding any source text (the source text travels as the user message
// built alongside the prompt by buildRequestBody).

const (
	binaryPromptVersion  = "binary-classification-v1"
	basicPromptVersion   = "basic-extraction-v1"
	searchPromptVersion  = "concept-search-v1"
	mappingPromptVersion = "concept-mapping-v1"

	model = "gpt-4o-mini"
)

var binaryPrompts = map[string]string{
	"is_manufacturer": "Answer only true or false: does the following company description describe a company that manufactures physical products?",
}

var basicPrompts = map[string]string{
	"addresses":     "Extract every physical business address mentioned in the following text. Respond with a JSON array of strings, one per address. If none are found, respond with [].",
	"business_desc": "Summarize what this company does in one or two sentences, based only on the following text. Respond with a JSON array containing exactly one string.",
}

var searchPrompts = map[string]string{
	"certificates": "List every certification or standards compliance (e.g. ISO 9001, AS9100) mentioned in the following text. Respond with a JSON array of strings.",
	"industries":   "List every industry this company appears to serve, based on the following text. Respond with a JSON array of strings.",
	"processes":    "List every manufacturing process (e.g. CNC machining, injection molding) mentioned in the following text. Respond with a JSON array of strings.",
	"materials":    "List every raw material or material class this company works with, based on the following text. Respond with a JSON array of strings.",
}

// buildMappingPrompt asks the model to map each unmapped candidate label
// onto the closest entry in knownLabels, or drop it if nothing is close.
func buildMappingPrompt(conceptType string, knownLabels []string) string {
	return fmt.Sprintf(
		"Given this fixed list of known %s: %v\nMap each candidate below to the single closest entry in that list. "+
			"If nothing is a reasonable match, omit the candidate. Respond with a JSON array of the matched known labels.",
		conceptType, knownLabels)
}

func buildRequestBody(systemPrompt, userText string) map[string]any {
	return map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userText},
		},
	}
}
