// Package client drives the client side of sign-in.
//
// A SessionStore holds the current AuthSession and only accepts legal state
// changes:
//
//	LoggedOut -> LoggingIn -> Verifying -> Verified
//	                 |            |
//	                 +--> Error <-+
//
// Any in-progress state can be abandoned back to LoggedOut, Error can be
// retried, and Verified is left by signing out.
//
// AuthFlowController runs one sign-in at a time. It asks an IdentityProvider
// for an offline grant and records the user's email. It then posts the code
// and id_token to the backend:
//
//	store := client.NewSessionStore()
//	ctrl := client.NewAuthFlowController("http://localhost:8080", store, provider, notifier)
//	if err := ctrl.Signin(ctx); err != nil {
//	    // err matches ErrGrantDenied, ErrBackendRejected, ...
//	}
//
// Results of a flow that was abandoned, or replaced by a newer one, are
// discarded and never reach the store or the Notifier.
package client
