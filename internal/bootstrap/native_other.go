//go:build !amd64 && !arm64

package bootstrap

// Native is empty where no bootstrap exists; Build rejects it.
const Native Arch = ""
