//go:build !linux

package main

import "github.com/1broseidon/mss/internal/platform"

func standaloneBackend() (backendRuntime, platform.Backend, func(), error) {
	return backendRuntime{}, nil, nil, errNoStandaloneAgent
}
