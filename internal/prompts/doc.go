// Package prompts contains the text the planner sends to the remote
// model and the canned replies it gives when the model has nothing to
// say.
//
// The system prompt is rebuilt on every remote turn from the event
// snapshot, so it renders records the caller already holds and never
// reads the store itself. Guidance questions are keyed by tool name and
// double as the pending-action prompts the user answers locally.
package prompts
