/*
Package session serializes direct runs that share one fingerprint store.

A run loads every fingerprint, executes, and saves them back. Two runs interleaving
that cycle would lose records, so the Manager holds a lock per key for the whole run:
a mutex for goroutines in the same process and, when a ports.Locker is configured,
a lock shared with other processes (for example through Redis).
*/
package session
