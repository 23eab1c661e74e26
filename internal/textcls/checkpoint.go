package textcls

import (
	"fmt"
	"time"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/textcls/internal/layers"
)

// CheckpointInfo is the header of a saved model.
type CheckpointInfo struct {
	ModelType   string
	BornVersion string
	CreatedAt   time.Time
	Metadata    map[string]string
}

// module adapts a Model to nn.Module for Born's serializer, which only
// reads and writes the state dict.
type module[B tensor.Backend] struct {
	Model[B]
}

func (m module[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input
}

// Save writes the weights of m to path in Born's .born format.
func Save[B tensor.Backend](m Model[B], path string, metadata map[string]string) error {
	if err := nn.Save[B](module[B]{m}, path, m.Name(), metadata); err != nil {
		return fmt.Errorf("save %s: %w", m.Name(), err)
	}
	return nil
}

// Load restores weights saved by Save into m.
//
// The architecture hyperparameters must match: every tensor is shape checked.
// On error the weights of m are left as they were.
func Load[B tensor.Backend](m Model[B], path string, backend B) (CheckpointInfo, error) {
	snapshot, err := layers.CloneState(m.StateDict())
	if err != nil {
		return CheckpointInfo{}, err
	}
	restore := func() {
		// snapshot came from m, so it always fits.
		_ = m.LoadStateDict(snapshot)
	}

	header, err := nn.Load[B](path, backend, module[B]{m})
	if err != nil {
		restore()
		return CheckpointInfo{}, fmt.Errorf("load %s: %w", path, err)
	}
	info := CheckpointInfo{
		ModelType:   header.ModelType,
		BornVersion: header.BornVersion,
		CreatedAt:   header.CreatedAt,
		Metadata:    header.Metadata,
	}
	if info.ModelType != m.Name() {
		restore()
		return info, fmt.Errorf("%w: file holds %s, model is %s", ErrCheckpointType, info.ModelType, m.Name())
	}
	return info, nil
}
