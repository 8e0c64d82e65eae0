// Package types provides core types shared across the body bridge.
// This package has ZERO dependencies on other body packages to avoid
// circular imports. All other packages should import types from here.
//
// The bridge deals with three kinds of records:
//
//   - CaptureRequest / CaptureResult: one sensor acquisition and its outcome
//   - CollaborationMessage: one tagged message exchanged with an external AI app
//   - ResonanceEntry: one immutable, sequenced record in the durable event log
package types
