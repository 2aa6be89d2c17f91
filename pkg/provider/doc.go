// Package provider defines the interface to the text-generation service
// used to formulate models and write solver code. Adapters (see
// provider/openai) handle their backend protocol internally; callers only
// see [Request] and [Response].
//
// A Generator is always injected. Nothing in this module reaches a global
// client.
package provider
