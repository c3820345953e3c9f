package lora

import (
	"regexp"
	"strings"
)

// KnownModel is the Better Than Headshots LoRA shipped with the built-in seed.
const (
	KnownModel        = "thomisont/betterthanheadshots-tjt"
	KnownModelVersion = "dd5079e7b7dcb7f898913226632c39419fe81762f08f960fb869cb954891d7da"
	KnownModelRef     = KnownModel + ":" + KnownModelVersion
	KnownTriggerWord  = "BTHEADSHOTS"
)

// Description phrasings, most specific first.
var triggerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)trigger word is (\w+)`),
	regexp.MustCompile(`(?i)trigger word: (\w+)`),
	regexp.MustCompile(`(?i)trigger word "([^"]+)"`),
	regexp.MustCompile(`(?i)Use the token "([^"]+)"`),
	regexp.MustCompile(`(?i)Use token "([^"]+)"`),
	regexp.MustCompile(`(?i)add "([^"]+)" to your prompt`),
}

// ExtractTriggerWord finds the trigger word of a model from its Replicate
// description, falling back to what the model name implies. Returns "" when
// nothing matches.
func ExtractTriggerWord(modelRef, description string) string {
	for _, re := range triggerPatterns {
		if m := re.FindStringSubmatch(description); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return KnownTriggerWordFor(modelRef)
}

// KnownTriggerWordFor returns the trigger word implied by the model reference alone.
func KnownTriggerWordFor(modelRef string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(modelRef), ":")
	if strings.Contains(strings.ToLower(name), "btheadshots") || name == KnownModel {
		return KnownTriggerWord
	}
	return ""
}
