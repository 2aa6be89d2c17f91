// Package engine orchestrates the modeling workflow: refining a problem
// statement, formulating it into a model through the generation service,
// rendering the model, generating solver code and running that code in the
// sandbox.
//
// The generation service is injected as a provider.Generator and may be
// absent; the sandbox is injected as a sandbox.Runner, either a local
// Executor or a remote Client.
package engine
