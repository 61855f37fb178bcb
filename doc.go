// Package pcgcp is the backend half of the pcgcp sign-in flow.
//
// A client obtains an offline authorization grant from Google (see the
// client and oauth2 packages) and posts the authorization code together with
// the id_token to the backend:
//
//	POST /api/authorization
//	X-Requested-With: XMLHttpRequest
//
//	{"code": "...", "id_token": "..."}
//
// The backend verifies the id_token, exchanges the code for an access token
// and answers with the names of the Cloud projects the user can see:
//
//	{"projects": ["Project One", "Project Two"]}
//
// Failures use the OAuth error body {"error", "error_description"}.
//
// # Basic Usage
//
//	cfg, _ := google.ConfigFromJSON(secret, oauth2.DefaultScopes...)
//	srv := pcgcp.NewServer(&pcgcp.AuthorizationHandler{
//	    Verifier:  pcgcp.NewGoogleIDTokenVerifier(cfg.ClientID),
//	    Exchanger: cfg,
//	    Projects:  &pcgcp.CloudResourceManagerLister{},
//	})
//	err := srv.ListenAndServe(ctx, ":8080")
//
// In development mode the backend pairs with oauth2.DevProvider. Its tokens
// are checked by HMACIDTokenVerifier and its codes accepted by DevExchanger.
// StaticProjectLister stands in for the Resource Manager API.
//
// # Routes
//
//	GET    /api/health         {}
//	POST   /api/authorization  verify a grant, list projects
//	GET    /api/session        {"email"} of the signed in user, or 401
//	DELETE /api/session        clear the server session
package pcgcp
