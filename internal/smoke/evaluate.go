package smoke

import (
	"net/http"
)

// Contract failure messages.
const (
	FailureTokenLeak    = "Contract failure: /api/telegram/validate must not expose supabaseAccessToken"
	FailureNotStream    = "Contract failure: /api/ai/complete must return NDJSON stream chunks"
	FailureStreamChunks = "Contract failure: /api/ai/complete stream must include meta and done chunks"
)

// Evaluate returns the contract failures of a check. Checks that errored or
// returned an error status are not inspected further.
func Evaluate(check Check) []string {
	if check.Error != "" || check.Status >= http.StatusBadRequest {
		return nil
	}

	switch check.Route {
	case RouteValidate:
		if object, ok := check.Payload.(map[string]any); ok {
			if _, leaked := object["supabaseAccessToken"]; leaked {
				return []string{FailureTokenLeak}
			}
		}

	case RouteComplete:
		chunks, ok := check.Payload.([]any)
		if !ok {
			return []string{FailureNotStream}
		}

		types := map[string]bool{}
		for _, chunk := range chunks {
			if object, ok := chunk.(map[string]any); ok {
				if chunkType, ok := object["type"].(string); ok {
					types[chunkType] = true
				}
			}
		}
		if !types["meta"] || !types["done"] {
			return []string{FailureStreamChunks}
		}
	}

	return nil
}
