// Command patternpress runs the pattern export daemon and provides CLI
// commands for operating it: serving, inspecting the queue, submitting
// exports, and managing configuration.
package main
