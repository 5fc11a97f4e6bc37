// Package robot implements the authentication capability used by labbot: it
// drives an identity provider login for one test user and exchanges the
// resulting authorization code for a token.
//
// A Robot separates the two halves of the flow. The Browser half opens the
// authorize URL, fills in the login form and reports where the identity
// provider redirected to. Two browsers are provided:
//
//   - ChromeBrowser: a headless (or visible) Chrome driven through chromedp,
//     used for unattended batch runs
//   - SystemBrowser: the user's default browser plus a loopback callback
//     server, used for manual single-user runs
//
// The Robot half checks the state parameter and performs the code exchange
// with golang.org/x/oauth2.
package robot
