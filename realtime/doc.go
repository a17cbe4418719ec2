// Package realtime keeps the process-local map of live push connections per
// account and delivers forced logouts.
//
// A [Registry] is constructed once at startup and shut down with the
// server. Nothing here is durable: after a restart clients reconnect and
// authenticate again. [WebsocketConn] adapts gorilla/websocket connections.
package realtime
