/*
Package domain contains the core model shared by the kiln planner, the direct executor
and the ninja serializer.

It defines the leaf units of work and the state they share during a planning pass.
The package is kept free of I/O so both lowering paths can consume the same model.

# Key Entities

  - Action: a Command, an Expression or an Assertion.
  - Context: the write-once key/value store read by guards and deferred steps.
  - Fingerprint: the recorded state of a command's read-set and write-set.
  - PlanError, RuntimeFailure, SerializationError: the three failure classes.
*/
package domain
