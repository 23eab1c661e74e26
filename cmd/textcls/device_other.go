//go:build !windows

package main

import (
	"fmt"

	"github.com/born-ml/textcls/internal/config"
)

func openPlatform(device string, _ *config.File, _ string) (session, func(), error) {
	if device == "webgpu" {
		return nil, nil, fmt.Errorf("%w: webgpu is only built on windows", ErrDevice)
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrDevice, device)
}
