package content

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

var baseline = mustParseBaseline(defaultYAML)

// Default returns the compiled-in baseline. Each call returns an independent
// copy, so callers may hold it as a snapshot.
func Default() WebsiteContent {
	return baseline.Clone()
}

func parseBaseline(raw []byte) (WebsiteContent, error) {
	var doc WebsiteContent
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return WebsiteContent{}, fmt.Errorf("decode baseline content: %w", err)
	}
	if err := Validate(doc); err != nil {
		return WebsiteContent{}, fmt.Errorf("validate baseline content: %w", err)
	}
	return doc, nil
}

func mustParseBaseline(raw []byte) WebsiteContent {
	doc, err := parseBaseline(raw)
	if err != nil {
		panic(err)
	}
	return doc
}
