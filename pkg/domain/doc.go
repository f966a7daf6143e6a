/*
Package domain contains the core types of the activity engine.

It describes the declarative activity document (sections, steps, transitions), the live
per-room ActivityState with its metadata store, chat messages and emitted events. The
package is pure: it holds no I/O and no references to adapters.

# Key Entities

  - ActivityDefinition: the immutable document loaded for a run.
  - Step / Transition: the unit of interaction and the effect bound to one bucket label.
  - Label: a bucket label that keeps its YAML kind (string, integer or boolean).
  - ActivityState: the one in-progress run for a room.
  - Message: a persisted chat line; events are broadcast payloads.
*/
package domain
