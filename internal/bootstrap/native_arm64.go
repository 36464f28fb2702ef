package bootstrap

// Native is the architecture this binary injects into.
const Native = ARM64
