/*
Package ports defines the driven ports (interfaces) of the lattice engine.

These interfaces decouple the activity runtime from storage, transport and the
language-model services it consults, so each can be swapped or stubbed.

# Key Interfaces

  - ActivityLoader: loads ActivityDefinition documents by path.
  - StateStore: persists the one in-progress ActivityState of a room.
  - MessageStore: appends and lists the chat history of a room.
  - Broadcaster: fire-and-forget delivery of events to a room.
  - Classifier, FeedbackGenerator, Translator, Grader: text services.
  - ScriptRunner: executes author-supplied hooks.
  - DistributedLocker: cross-process locking for room access.
*/
package ports
