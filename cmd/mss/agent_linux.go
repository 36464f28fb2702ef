//go:build linux

package main

import (
	"github.com/1broseidon/mss/internal/platform"
	"github.com/1broseidon/mss/internal/x11"
)

func standaloneBackend() (backendRuntime, platform.Backend, func(), error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return backendRuntime{}, nil, nil, err
	}
	rt := backendRuntime{runtime: x11.NewRuntime(conn), spec: x11.EWMHSpec}
	return rt, platform.NewLinuxBackend(conn), conn.Close, nil
}
