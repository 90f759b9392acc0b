// Package session manages wizard sessions.
//
// Each session owns its own recording store, participant metadata, prompt
// script and archive job, so several participants can use one engine
// without sharing state. Idle sessions are expired by a background
// cleanup routine.
package session
