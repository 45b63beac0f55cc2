// Package session implements the conversational completion session on top of
// a model.Resource. It is structured into small files by concern:
//
//   - session.go: Session type, Complete/Stream, Close.
//   - config.go: Config and package defaults; New applies defaults.
//   - admission.go: single in-flight slot plus bounded wait queue.
//   - errors.go: BusyError, InferenceError and predicates.
//   - events.go, eventpub_watermill.go: lifecycle events and the watermill publisher.
//   - metrics.go: Prometheus collectors.
//   - status.go: Status/Ready reporting.
//
// A Session owns its Resource and History exclusively. Calls are serialized:
// one generation runs at a time, a bounded number wait, and the rest are
// rejected with a BusyError.
package session
