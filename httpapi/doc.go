// Package httpapi is the REST and websocket surface of goTrust, built on gin.
//
// Routes live under /auth (registration, login, refresh, second factor,
// recovery), /moderation (ban, revoke, warn; moderator or admin only), /ws
// (forced-logout push channel), /healthz and /metrics. Access and refresh
// tokens are returned in the JSON body and mirrored in the mh_access_token
// and mh_refresh_token cookies.
package httpapi
