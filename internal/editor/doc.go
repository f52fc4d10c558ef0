// Package editor drives the external desktop image editor.
//
// The editor is a singleton, non-reentrant resource: it is launched once per
// scripted invocation and self-terminates when the script ends. The runner
// starts an invocation under a hard timeout, and the gate serializes access
// by waiting for any previous instance to exit before the next invocation.
// Process exit is deliberately not treated as the completion signal; the
// artifact package watches for the script's output file instead.
package editor
