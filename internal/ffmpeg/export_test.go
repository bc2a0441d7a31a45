package ffmpeg

// EnvProvider exposes the resolver's environment interface to black-box tests.
type EnvProvider = envProvider
