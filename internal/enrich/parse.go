package enrich

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/internal/model"
)

// ParsePrediction extracts the accepted predictions from a backend reply.
// Keys outside requested, identity fields, nulls and ill-typed values are
// dropped. A reply that is not a JSON object is MalformedResponse.
func ParsePrediction(provider, text string, requested []string) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		return nil, &apierr.Error{
			Kind:     apierr.MalformedResponse,
			Provider: provider,
			Detail:   "reply is not a JSON object",
			Err:      err,
		}
	}

	allowed := make(map[string]bool, len(requested))
	for _, f := range requested {
		allowed[f] = true
	}

	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if !allowed[k] || model.IsIdentityField(k) {
			zap.L().Debug("enrich: dropped unrequested key", zap.String("key", k))
			continue
		}
		if v == nil {
			continue
		}
		val, ok := model.Coerce(k, v)
		if !ok {
			zap.L().Debug("enrich: dropped ill-typed value", zap.String("key", k), zap.Any("value", v))
			continue
		}
		out[k] = val
	}
	return out, nil
}

// cleanJSON extracts a JSON object from text that may be wrapped in markdown
// code fences or prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
