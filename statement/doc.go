// Package statement defines the pending mutations consumed by the engine.
package statement
