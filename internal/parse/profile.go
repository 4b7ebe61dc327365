package parse

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed profiles/*.json
var profileFS embed.FS

// profileSchema validates reduction profile documents before use; a typo in
// a profile would otherwise silently disable whole strategies.
const profileSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["language"],
	"additionalProperties": false,
	"properties": {
		"language": {"type": "string", "minLength": 1},
		"optional": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"lists": {"type": "array", "items": {"type": "string", "minLength": 1}}
	}
}`

// Sentinel errors for profile loading.
var (
	// ErrInvalidProfile indicates a profile document failed schema validation.
	ErrInvalidProfile = errors.New("parse: invalid reduction profile")

	// ErrNoProfile indicates no bundled profile exists for a language.
	ErrNoProfile = errors.New("parse: no bundled profile for language")
)

// Profile declares, for one grammar, which node kinds are optional (safe to
// delete with the parent remaining valid) and which ones carry shrinkable
// child lists. Comment kinds are treated as optional in every grammar.
type Profile struct {
	Language string   `json:"language"`
	Optional []string `json:"optional"`
	Lists    []string `json:"lists"`

	optional map[string]struct{}
	lists    map[string]struct{}
}

// LoadProfile returns the bundled profile for a language.
func LoadProfile(language string) (*Profile, error) {
	data, err := profileFS.ReadFile("profiles/" + language + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoProfile, language)
	}

	return parseProfile(data)
}

// LoadProfileFile reads and validates a user-supplied profile document,
// overriding the bundled one.
func LoadProfileFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	return parseProfile(data)
}

func parseProfile(data []byte) (*Profile, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(profileSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate profile: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(msgs, "; "))
	}

	var p Profile

	unmarshalErr := json.Unmarshal(data, &p)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("decode profile: %w", unmarshalErr)
	}

	p.index()

	return &p, nil
}

// index builds the lookup sets from the declared kind lists.
func (p *Profile) index() {
	p.optional = make(map[string]struct{}, len(p.Optional))
	for _, kind := range p.Optional {
		p.optional[kind] = struct{}{}
	}

	p.lists = make(map[string]struct{}, len(p.Lists))
	for _, kind := range p.Lists {
		p.lists[kind] = struct{}{}
	}
}

// IsOptional reports whether nodes of the given kind may be deleted.
func (p *Profile) IsOptional(kind string) bool {
	if strings.Contains(kind, "comment") {
		return true
	}

	_, ok := p.optional[kind]

	return ok
}

// IsList reports whether nodes of the given kind carry a shrinkable child
// list.
func (p *Profile) IsList(kind string) bool {
	_, ok := p.lists[kind]

	return ok
}
