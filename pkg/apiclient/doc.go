// Package apiclient is the HTTP client for the Tutoria backends: the
// management API, the auth API and the AI API.
//
//	client := apiclient.New(apiclient.Config{
//		ManagementURL: cfg.API.ManagementURL,
//		AuthURL:       cfg.API.AuthURL,
//		AIURL:         cfg.API.AIURL,
//	})
//	client.SetTokens(tokens)
//	courses, err := client.Courses().List(ctx, url.Values{"universityId": {id}})
//
// Every request carries the bearer token and runs under its own timeout
// (30s by default). When a backend answers 401 outside /auth/, the client
// refreshes the access token and retries the request once. Concurrent 401s
// share a single refresh call. After three consecutive failed refreshes the
// tokens are wiped, the TokenObserver is told, and no refresh is attempted
// until SetTokens installs new credentials.
//
// Non-2xx responses become *APIError carrying the backend's "detail" or
// "message" text.
package apiclient
