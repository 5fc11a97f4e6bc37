package smart

import "fmt"

// Step names one structural expectation checked while walking a capability
// statement, in the order they are checked.
type Step string

const (
	StepRest               Step = "rest"
	StepServerMode         Step = "mode:server"
	StepSecurity           Step = "security"
	StepSecurityExtension  Step = "security.extension"
	StepOAuthURIs          Step = "oauth-uris"
	StepOAuthURIsExtension Step = "oauth-uris.extension"
	StepTokenEntry         Step = "url:token"
	StepTokenValueURI      Step = "token.valueUri"
	StepAuthorizeEntry     Step = "url:authorize"
	StepAuthorizeValueURI  Step = "authorize.valueUri"
)

// MalformedCapabilityDocumentError is returned when a capability statement
// does not have the structure needed to locate the OAuth endpoints.
// Discovery stops at the first violated expectation.
type MalformedCapabilityDocumentError struct {
	// BaseURL is the FHIR base URL the statement was fetched from, if known.
	BaseURL string

	// Step is the expectation that failed.
	Step Step

	// Description is a human-readable description of the missing key or path.
	Description string
}

// Error implements the error interface.
func (e *MalformedCapabilityDocumentError) Error() string {
	if e.BaseURL != "" {
		return fmt.Sprintf("malformed capability statement from %s: %s", e.BaseURL, e.Description)
	}
	return "malformed capability statement: " + e.Description
}

// Is allows errors.Is() to match any MalformedCapabilityDocumentError.
func (e *MalformedCapabilityDocumentError) Is(target error) bool {
	_, ok := target.(*MalformedCapabilityDocumentError)
	return ok
}

func malformed(step Step, description string) *MalformedCapabilityDocumentError {
	return &MalformedCapabilityDocumentError{Step: step, Description: description}
}
