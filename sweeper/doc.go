// Package sweeper purges accounts whose permanent ban is older than the
// retention window, and drops expired tickets.
//
// Every purged account is deleted in its own transaction, walking the
// dependent rows in [CascadeOrder] before the account row itself, so no run
// holds locks across accounts and no database-level cascade is assumed.
// Scheduling goes through thejerf/abtime so tests can fire runs by hand.
package sweeper
