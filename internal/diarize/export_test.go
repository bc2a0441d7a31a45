package diarize

// Exports for testing.

// CommandRunner exports commandRunner for mocks.
type CommandRunner = commandRunner

// WithRunner exports withRunner.
var WithRunner = withRunner
