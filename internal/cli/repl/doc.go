// Package repl runs CLI commands interactively.
//
//   - repl.go: read-eval-print loop and line splitting
//   - completer.go: command prefix completion ("chap?" lists matches)
//   - history.go: command history persisted next to the CLI config
package repl
