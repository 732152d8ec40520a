// Package flows holds the step-by-step orchestration of the engine's
// compound operations (login, validate, refresh). Each flow takes its
// collaborators as a deps struct of narrow funcs and returns a result
// with a classified failure kind; the root package maps kinds onto its
// public error taxonomy and emits metrics and audit events. Keeping the
// sequencing here keeps the root engine file to wiring and mapping.
package flows
