// internal/dataset/templates.go
package dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mwiater/prefbench/internal/providers"
)

// Formatter renders a prompt and one completion into the text the model scores.
type Formatter interface {
	Format(ctx context.Context, prompt, completion string) (string, error)
}

// chatTemplate renders a single user/assistant exchange.
type chatTemplate struct {
	name      string
	user      string
	assistant string
}

var builtinTemplates = map[string]chatTemplate{
	"raw": {
		name:      "raw",
		user:      "%s",
		assistant: "%s",
	},
	"chatml": {
		name:      "chatml",
		user:      "<|im_start|>user\n%s<|im_end|>\n",
		assistant: "<|im_start|>assistant\n%s<|im_end|>\n",
	},
	"llama-3": {
		name:      "llama-3",
		user:      "<|begin_of_text|><|start_header_id|>user<|end_header_id|>\n\n%s<|eot_id|>",
		assistant: "<|start_header_id|>assistant<|end_header_id|>\n\n%s<|eot_id|>",
	},
	"zephyr": {
		name:      "zephyr",
		user:      "<|user|>\n%s</s>\n",
		assistant: "<|assistant|>\n%s</s>\n",
	},
	"tulu": {
		name:      "tulu",
		user:      "<|user|>\n%s\n",
		assistant: "<|assistant|>\n%s",
	},
}

// TemplateNames lists the built-in chat templates.
func TemplateNames() []string {
	names := make([]string, 0, len(builtinTemplates))
	for name := range builtinTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NamedTemplate returns the built-in template called name.
func NamedTemplate(name string) (Formatter, error) {
	tmpl, ok := builtinTemplates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown chat template %q (available: %s)", name, strings.Join(TemplateNames(), ", "))
	}
	return tmpl, nil
}

func (t chatTemplate) Format(_ context.Context, prompt, completion string) (string, error) {
	return fmt.Sprintf(t.user, prompt) + fmt.Sprintf(t.assistant, completion), nil
}

// ApplyFunc renders a conversation with the tokenizer's own chat template.
type ApplyFunc func(ctx context.Context, messages []providers.ChatMessage) (string, error)

// Format implements Formatter by sending the exchange as two chat messages.
func (f ApplyFunc) Format(ctx context.Context, prompt, completion string) (string, error) {
	return f(ctx, []providers.ChatMessage{
		{Role: "user", Content: prompt},
		{Role: "assistant", Content: completion},
	})
}

// Prepare turns records into examples. Formatted records are used verbatim;
// the others are rendered with formatter, which may be nil only when every
// record is already formatted.
func Prepare(ctx context.Context, records []Record, formatter Formatter) ([]Example, error) {
	examples := make([]Example, len(records))
	for i, rec := range records {
		ex := Example{Prompt: rec.Prompt, Subset: rec.Label()}
		if rec.Formatted() {
			ex.TextChosen = rec.TextChosen
			ex.TextRejected = rec.TextRejected
			examples[i] = ex
			continue
		}
		if formatter == nil {
			return nil, fmt.Errorf("record %d needs a chat template but none is available", i)
		}
		var err error
		if ex.TextChosen, err = formatter.Format(ctx, rec.Prompt, rec.Chosen); err != nil {
			return nil, fmt.Errorf("format record %d chosen: %w", i, err)
		}
		if ex.TextRejected, err = formatter.Format(ctx, rec.Prompt, rec.Rejected); err != nil {
			return nil, fmt.Errorf("format record %d rejected: %w", i, err)
		}
		examples[i] = ex
	}
	return examples, nil
}
