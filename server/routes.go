package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jrsteele09/go-sso-server/oauth2"
)

func (s *Server) initRoutes() {
	r := chi.NewRouter()
	r.Use(s.RequestLogger()...)
	r.Use(s.RecoverMiddleware)
	r.Use(s.FrameSecurityMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.GetAllowedOrigins().List(),
		AllowedMethods:   s.config.GetAllowedMethods(),
		AllowedHeaders:   s.config.GetAllowedHeaders(),
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get(RouteHealth, s.Health())

	// OAuth2 / OIDC
	r.Get(oauth2.PathWellKnownOpenIDConfig, s.WellKnownOpenIDConfig())
	r.Get(oauth2.PathWellKnownJWKS, s.JWKS())
	r.Get(oauth2.PathAuthorize, s.Authorize())
	r.Post(oauth2.PathLogin, s.Login())
	r.Post(oauth2.PathToken, s.Token())
	r.Post(oauth2.PathIntrospect, s.Introspect())
	r.Post(oauth2.PathRevoke, s.Revoke())
	r.Post(oauth2.PathRegister, s.RegisterClient())
	r.Post(oauth2.PathPKCEVerify, s.VerifyPKCE())
	r.Get(oauth2.PathUserInfo, s.UserInfo())

	// SSO sessions
	r.Post(RouteSessions, s.CreateSession())
	r.Post(RouteSessionVerify, s.VerifySession())
	r.Post(RouteSessionRefresh, s.RefreshSession())
	r.Group(func(r chi.Router) {
		r.Use(s.RequireSession)
		r.Delete(RouteSession, s.EndSession())
		r.Get(RouteUserSessions, s.ListUserSessions())
		r.Delete(RouteUserSessions, s.EndUserSessions())
		r.Post(RouteAccessEvaluate, s.EvaluateAccess())
	})

	s.router = r
}
