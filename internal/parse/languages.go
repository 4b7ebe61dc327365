// Package parse turns source text into the engine's syntax tree snapshots
// using tree-sitter grammars, with language detection and per-language
// reduction profiles.
package parse

import (
	"sync"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/alexaandru/go-sitter-forest/c"
	"github.com/alexaandru/go-sitter-forest/cpp"
	golang "github.com/alexaandru/go-sitter-forest/go"
	"github.com/alexaandru/go-sitter-forest/java"
	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/python"
	"github.com/alexaandru/go-sitter-forest/rust"
)

// languageFuncs maps language names to their tree-sitter GetLanguage functions.
// Only the languages with bundled reduction profiles are included.
var languageFuncs = map[string]func() unsafe.Pointer{
	"c":          c.GetLanguage,
	"cpp":        cpp.GetLanguage,
	"go":         golang.GetLanguage,
	"java":       java.GetLanguage,
	"javascript": javascript.GetLanguage,
	"python":     python.GetLanguage,
	"rust":       rust.GetLanguage,
}

var languageCache sync.Map

// GetLanguage returns the tree-sitter Language for the given name, or nil
// if not supported.
func GetLanguage(name string) *sitter.Language {
	if cached, ok := languageCache.Load(name); ok {
		lang, castOK := cached.(*sitter.Language)
		if castOK {
			return lang
		}
	}

	fn, ok := languageFuncs[name]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	languageCache.Store(name, lang)

	return lang
}

// SupportedLanguages lists the registered language names.
func SupportedLanguages() []string {
	names := make([]string, 0, len(languageFuncs))

	for name := range languageFuncs {
		names = append(names, name)
	}

	return names
}
