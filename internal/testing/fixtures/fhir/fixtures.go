package fhir

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed capability_statement.json
var capabilityStatementTemplate string

// CapabilityStatement renders the fixture with the given endpoint URLs.
func CapabilityStatement(authorizeURL, tokenURL string) []byte {
	return []byte(strings.NewReplacer(
		"{{AUTHORIZE_URL}}", authorizeURL,
		"{{TOKEN_URL}}", tokenURL,
	).Replace(capabilityStatementTemplate))
}

// Mutate decodes the rendered fixture, applies fn to the generic document and
// re-encodes it. It panics on fixture errors since those are test bugs.
func Mutate(authorizeURL, tokenURL string, fn func(doc map[string]any)) []byte {
	var doc map[string]any
	if err := json.Unmarshal(CapabilityStatement(authorizeURL, tokenURL), &doc); err != nil {
		panic(fmt.Sprintf("invalid capability statement fixture: %v", err))
	}

	fn(doc)

	out, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("failed to encode mutated fixture: %v", err))
	}
	return out
}

// ServerRest returns the rest entry with mode "server" of a decoded fixture.
func ServerRest(doc map[string]any) map[string]any {
	for _, entry := range doc["rest"].([]any) {
		rest := entry.(map[string]any)
		if rest["mode"] == "server" {
			return rest
		}
	}
	panic("fixture has no server rest entry")
}

// OAuthURIs returns the oauth-uris extension of a decoded fixture.
func OAuthURIs(doc map[string]any) map[string]any {
	security := ServerRest(doc)["security"].(map[string]any)
	return security["extension"].([]any)[0].(map[string]any)
}
