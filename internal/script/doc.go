// Package script provides the prompt material read aloud by participants:
// the built-in English sets and participant-supplied custom scripts.
package script
