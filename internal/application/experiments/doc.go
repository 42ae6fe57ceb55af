// Package experiments implements the core experiment logic.
//
// The service coordinates prompt experiments by:
//   - Validating completion and batch requests
//   - Resolving provider, model and sampling defaults
//   - Executing completions through the client registry
//   - Pricing token usage and persisting experiment records
//   - Managing batch lifecycle (submit, execute, monitor, timeout)
//   - Publishing lifecycle events to the event bus
//
// The validator ensures requests name configured providers and carry
// sane sampling parameters.
package experiments
