/*
Package ports defines the driven ports (interfaces) for the kiln executor.

These interfaces decouple the executor from the filesystem, the fingerprint
backend and the subprocess boundary.

# Key Interfaces

  - FingerprintStore: loads and saves the fingerprints recorded by previous runs.
  - ProcessRunner: spawns one subprocess and reports its exit status.
  - Locker: serializes runs that share a fingerprint store.
*/
package ports
