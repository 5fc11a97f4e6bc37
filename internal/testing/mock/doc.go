// Package mock provides a mock lab environment for testing labbot end to end.
//
// LabServer bundles the three services a LabBot run talks to:
//
//   - a FHIR capability statement at {BaseURL}/metadata advertising the
//     authorize and token endpoints through the oauth-uris extension
//   - an identity provider that authenticates test users by password and
//     issues single-use authorization codes and bearer tokens bound to a
//     patient ICN
//   - a FHIR Patient read endpoint that only answers for the patient bound to
//     the presented token
//
// LabServer.Login stands in for the browser half of a login, so tests can
// drive the real robot and orchestrator without Chrome:
//
//	lab := mock.NewLabServer(mock.LabServerConfig{ClientSecret: "s", Password: "pw"})
//	defer lab.Close()
//
//	browser := robot.BrowserFunc(func(ctx context.Context, authURL, _ string, u oauth.UserCredentials) (*robot.CallbackResult, error) {
//	    location, err := lab.Login(ctx, authURL, u)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return robot.ParseCallbackURL(location)
//	})
//
// Counters (MetadataCount, TokenCount, MaxConcurrentRequests, ...) let tests
// assert on caching and concurrency limits. A MockClock makes token expiry
// testable without waiting.
package mock
