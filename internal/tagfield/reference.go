package tagfield

import (
	"strconv"
	"strings"
)

// NewPrefix marks a raw field value that asks for a tag to be created.
const NewPrefix = "new:"

// Kind distinguishes the variants of a Reference.
type Kind int

const (
	// Existing references a tag by ID.
	Existing Kind = iota
	// Pending asks for a tag with Name to be found or created.
	Pending
	// Invalid is a token that is neither an ID nor a sentinel.
	Invalid
)

func (k Kind) String() string {
	switch k {
	case Existing:
		return "existing"
	case Pending:
		return "pending"
	default:
		return "invalid"
	}
}

// Reference is one parsed raw field value.
type Reference struct {
	Kind Kind
	ID   int64
	Name string
	Raw  string
}

// ParseReference classifies a single non-blank token.
func ParseReference(token string) Reference {
	token = strings.TrimSpace(token)
	if name, ok := strings.CutPrefix(token, NewPrefix); ok {
		name = strings.TrimSpace(name)
		if name == "" {
			return Reference{Kind: Invalid, Raw: token}
		}
		return Reference{Kind: Pending, Name: name, Raw: token}
	}
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil || id <= 0 {
		return Reference{Kind: Invalid, Raw: token}
	}
	return Reference{Kind: Existing, ID: id, Raw: token}
}

// ParseReferences parses raw form values in order, dropping blank entries
// left behind by unchecked inputs.
func ParseReferences(raw []string) []Reference {
	refs := make([]Reference, 0, len(raw))
	for _, token := range raw {
		if strings.TrimSpace(token) == "" {
			continue
		}
		refs = append(refs, ParseReference(token))
	}
	return refs
}
