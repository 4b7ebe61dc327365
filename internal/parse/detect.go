package parse

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/src-d/enry/v2"
)

// ErrUnknownLanguage indicates the input language could not be detected or
// has no registered grammar.
var ErrUnknownLanguage = errors.New("parse: unknown language")

// enryAliases maps enry's linguist language names onto grammar registry
// names where they differ.
var enryAliases = map[string]string{
	"c++": "cpp",
	"c":   "c",
}

// DetectLanguage resolves the grammar name for an input file. An explicit
// name wins; otherwise the language is detected from the file name and
// content.
func DetectLanguage(explicit, filename string, content []byte) (string, error) {
	if explicit != "" {
		name := normalizeLanguage(explicit)
		if GetLanguage(name) == nil {
			return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnknownLanguage, explicit, strings.Join(SupportedLanguages(), ", "))
		}

		return name, nil
	}

	detected := enry.GetLanguage(path.Base(filename), content)
	if detected == "" {
		return "", fmt.Errorf("%w: could not detect language of %s", ErrUnknownLanguage, filename)
	}

	name := normalizeLanguage(detected)
	if GetLanguage(name) == nil {
		return "", fmt.Errorf("%w: detected %q but no grammar is registered for it", ErrUnknownLanguage, detected)
	}

	return name, nil
}

// normalizeLanguage lowercases a language name and applies registry aliases.
func normalizeLanguage(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))

	if alias, ok := enryAliases[lower]; ok {
		return alias
	}

	return strings.ReplaceAll(lower, " ", "_")
}
