// Package sandbox runs generated solver code in a child process with a hard
// timeout and captured output streams.
//
// Every outcome is encoded in the returned [Result]; nothing is returned as
// an error. [Executor] runs code locally, [Client] forwards it to a remote
// sandbox server, and [Server] exposes any [Runner] over HTTP so a sandbox
// can run on a separate host.
package sandbox
