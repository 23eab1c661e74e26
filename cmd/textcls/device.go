package main

import (
	"errors"
	"strings"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/textcls/internal/config"
	"github.com/born-ml/textcls/internal/pipeline"
)

// session is a classifier with its backend type erased.
type session interface {
	pipeline.Service
	Save(path string) error
}

// ErrDevice is returned for an unknown or unavailable device.
var ErrDevice = errors.New("unsupported device")

// openSession builds the classifier of f on the named backend. The returned
// func releases backend resources.
func openSession(device string, f *config.File, weights string) (session, func(), error) {
	switch strings.ToLower(device) {
	case "", "cpu":
		return open(f, weights, cpu.New(), func() {})
	case "autodiff":
		return open(f, weights, autodiff.New(cpu.New()), func() {})
	default:
		return openPlatform(strings.ToLower(device), f, weights)
	}
}

func open[B tensor.Backend](f *config.File, weights string, backend B, release func()) (session, func(), error) {
	c, err := pipeline.Open(f, weights, backend)
	if err != nil {
		release()
		return nil, nil, err
	}
	return c, release, nil
}
