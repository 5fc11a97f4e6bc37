package smart

import (
	"fmt"

	"labbot/pkg/jsontree"
)

// OAuthURIsExtension identifies the SMART on FHIR extension listing the
// authorize and token endpoints inside a capability statement.
const OAuthURIsExtension = "http://fhir-registry.smarthealthit.org/StructureDefinition/oauth-uris"

// Endpoints are the OAuth endpoints advertised by a FHIR server.
type Endpoints struct {
	AuthorizeURL string `json:"authorize" yaml:"authorize"`
	TokenURL     string `json:"token" yaml:"token"`
}

// ParseCapabilityStatement extracts the OAuth endpoints from a FHIR
// capability statement (the /metadata document).
//
// The expected shape is:
//
//	rest[mode=server].security.extension[url=oauth-uris].extension[url=token|authorize].valueUri
func ParseCapabilityStatement(data []byte) (Endpoints, error) {
	root, err := jsontree.Parse(data)
	if err != nil {
		return Endpoints{}, fmt.Errorf("failed to parse capability statement: %w", err)
	}

	oauthURIs, err := findOAuthExtension(root)
	if err != nil {
		return Endpoints{}, err
	}

	token, err := findURI(oauthURIs, "token", StepTokenEntry, StepTokenValueURI)
	if err != nil {
		return Endpoints{}, err
	}

	authorize, err := findURI(oauthURIs, "authorize", StepAuthorizeEntry, StepAuthorizeValueURI)
	if err != nil {
		return Endpoints{}, err
	}

	return Endpoints{AuthorizeURL: authorize, TokenURL: token}, nil
}

func findOAuthExtension(root jsontree.Node) (jsontree.Node, error) {
	rest := root.Path("rest")
	if rest.Missing() {
		return jsontree.Node{}, malformed(StepRest, "Unable to find JSON node with 'rest' path")
	}

	server, ok := rest.FindChild("mode", "server")
	if !ok {
		return jsontree.Node{}, malformed(StepServerMode, "Unable to find child JSON node with 'mode:server' key:value pair")
	}

	security := server.Path("security")
	if security.Missing() {
		return jsontree.Node{}, malformed(StepSecurity, "Unable to find JSON node with 'security' path")
	}

	extension := security.Path("extension")
	if extension.Missing() {
		return jsontree.Node{}, malformed(StepSecurityExtension, "Unable to find JSON node with 'extension' path for securityNode")
	}

	oauthURIs, ok := extension.FindChild("url", OAuthURIsExtension)
	if !ok {
		return jsontree.Node{}, malformed(StepOAuthURIs,
			fmt.Sprintf("Unable to find JSON node with 'url:%s' key value pair", OAuthURIsExtension))
	}

	nested := oauthURIs.Path("extension")
	if nested.Missing() {
		return jsontree.Node{}, malformed(StepOAuthURIsExtension, "Unable to find JSON node with 'extension' path for oauthUriNode")
	}

	return nested, nil
}

func findURI(oauthURIs jsontree.Node, name string, entryStep, valueStep Step) (string, error) {
	entry, ok := oauthURIs.FindChild("url", name)
	if !ok {
		return "", malformed(entryStep, fmt.Sprintf("Unable to find JSON node with 'url:%s' key value pair", name))
	}

	uri, ok := entry.Path("valueUri").String()
	if !ok {
		return "", malformed(valueStep, fmt.Sprintf("Unable to find JSON node with 'valueUri' path for %s", name))
	}

	return uri, nil
}
