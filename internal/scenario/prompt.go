package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
)

// DefaultPrompt is the instruction every scenario conversation is seeded with.
const DefaultPrompt = `
You are a helpful assistant that helps people complete NSW Government forms and services.
You will be given the scenario the user is working through and the conversation so far.
The user's message may include the field they last answered and the current state of their form.

Your job is to:
1. Answer the user's current question, focusing on the field they are asking about when there is one.
2. Use the answers already given to work out what is still missing and guide the user to the next step.
3. When the context contains a URL or an info box, use that content to ground your answer.
4. If you do not have enough information, say "I don't know". Do not make up answers.
5. Answer concisely in markdown.
6. Link to relevant official NSW Government resources where they help.
7. If an answer looks invalid, politely ask the user to clarify or correct it.
`

// LoadPrompt reads a seed prompt document from disk. Any format the ext parser
// understands is accepted; unknown extensions are read as plain text.
func LoadPrompt(ctx context.Context, path string) (string, error) {
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return "", fmt.Errorf("init prompt parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return "", fmt.Errorf("init prompt loader: %w", err)
	}
	docs, err := loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", path, err)
	}
	var builder strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(content)
	}
	if builder.Len() == 0 {
		return "", errors.New("prompt file has no readable text content")
	}
	return builder.String(), nil
}
