package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts holds the instruction templates sent to the completion backend.
// IntentTemplate must contain exactly one %s, replaced by the user's text.
type Prompts struct {
	IntentTemplate string `yaml:"intent_template"`
	Persona        string `yaml:"persona"`
	ProbeMessage   string `yaml:"probe_message"`
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		IntentTemplate: `Phân tích ý định người dùng từ tin nhắn sau: "%s".
Trả về dưới dạng JSON với các trường:
- intent (search_product, product_details, add_to_cart, view_cart, checkout, general_question)
- keyword (nếu là search_product)
- sku (nếu là product_details hoặc add_to_cart)
- quantity (nếu là add_to_cart, mặc định là 1)`,
		Persona:      "Bạn là trợ lý ảo của MM Vietnam Shop. Hãy trả lời thân thiện, ngắn gọn và bằng tiếng Việt.",
		ProbeMessage: "Xin chào",
	}
}

// LoadPrompts returns the default templates overlaid with any non-empty
// fields from the YAML file at path. An empty path yields the defaults.
func LoadPrompts(path string) (Prompts, error) {
	prompts := DefaultPrompts()
	if path == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return prompts, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return prompts, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	if override.IntentTemplate != "" {
		prompts.IntentTemplate = override.IntentTemplate
	}
	if override.Persona != "" {
		prompts.Persona = override.Persona
	}
	if override.ProbeMessage != "" {
		prompts.ProbeMessage = override.ProbeMessage
	}

	return prompts, nil
}
