// Package engine runs pack targets: once in parallel for the pack command,
// or continuously in watch mode.
//
// The implementation is split across files:
//   - runner.go: target selection, parallel packs and watch sessions
//   - factory.go: default dependency wiring
//   - safegroup.go: panic-safe errgroup
package engine
