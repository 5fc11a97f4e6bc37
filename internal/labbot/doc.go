// Package labbot acquires OAuth tokens for a fleet of test users and fans out
// one authenticated FHIR request per user.
//
// A run has two phases, each on its own worker pool of Options.Workers:
//
//  1. Token phase (Bot.AcquireAllTokens): for every user id, the Acquirer
//     discovers the authorize and token endpoints of the batch base URL and
//     has a robot log the user in.
//  2. Request phase (Bot.DispatchRequests): for every acquired token, GET
//     {scheme}://{host}{path} with each "{icn}" in path replaced by the
//     token's patient, and keep the first line of the response body.
//
// A failing user never affects the others. Under ErrorPolicyDrop (the
// default) failures are logged and omitted; under ErrorPolicyCollect they are
// returned with UserResult.Err set. Each phase waits at most
// Options.PhaseTimeout; results of tasks still running at that point are
// discarded.
//
// Per-task errors are *EndpointDiscoveryError, *AuthenticationError or
// *RequestError.
package labbot
