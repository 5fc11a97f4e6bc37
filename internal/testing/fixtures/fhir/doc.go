// Package fhir contains test fixtures for SMART on FHIR discovery testing.
//
// The fixtures in this directory provide sample documents:
//
//   - capability_statement.json: a CapabilityStatement advertising the
//     oauth-uris extension, with placeholder authorize and token URLs
//
// Use CapabilityStatement to render the placeholders, or Mutate to derive
// a structurally broken statement for negative tests.
package fhir
