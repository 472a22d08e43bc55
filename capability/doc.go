// Package capability provides building blocks for implementing the
// core.Capability interface: the external collaborators tasks are delegated
// to.
//
// The Func adapter lifts a plain function into a named capability for local
// work. The openai and anthropic subpackages adapt the respective LLM
// provider SDKs, turning a task's prompt into a single-shot completion.
package capability
