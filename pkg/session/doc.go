/*
Package session serialises access to activity rooms.

Every command for a room runs under that room's lock so that turns never
interleave. Locks are reference counted and dropped when idle, and can be
backed by a distributed locker when several replicas share one state store.
*/
package session
