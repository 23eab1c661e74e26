//go:build windows

package main

import (
	"fmt"

	"github.com/born-ml/born/backend/webgpu"

	"github.com/born-ml/textcls/internal/config"
)

func openPlatform(device string, f *config.File, weights string) (session, func(), error) {
	if device != "webgpu" {
		return nil, nil, fmt.Errorf("%w: %q", ErrDevice, device)
	}
	if !webgpu.IsAvailable() {
		return nil, nil, fmt.Errorf("%w: webgpu adapter not found", ErrDevice)
	}
	gpu, err := webgpu.New()
	if err != nil {
		return nil, nil, err
	}
	return open(f, weights, gpu, gpu.Release)
}
