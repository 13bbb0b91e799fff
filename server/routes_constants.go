package server

// SSO and access routes. OAuth2 and OIDC paths live in the oauth2 package so
// the discovery document and the router cannot drift apart.
const (
	RouteSessions       = "/sso/sessions"
	RouteSessionVerify  = "/sso/sessions/verify"
	RouteSessionRefresh = "/sso/sessions/refresh"
	RouteSession        = "/sso/sessions/{sessionID}"
	RouteUserSessions   = "/sso/users/{userID}/sessions"

	RouteAccessEvaluate = "/access/evaluate"
	RouteHealth         = "/health"
)
