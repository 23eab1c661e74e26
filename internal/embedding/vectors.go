package embedding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// InitScale bounds the uniform draw for rows missing from a vectors file.
const InitScale = 0.05

// ErrVectorsFormat is returned for malformed vector files.
var ErrVectorsFormat = errors.New("malformed vectors file")

// Indexer resolves tokens to matrix rows.
type Indexer interface {
	Size() int
	Index(token string) (int, bool)
}

// LoadVectors reads GloVe or word2vec text vectors into a matrix aligned to idx.
//
// Each line is a token followed by dim values. A leading "count dim" header
// is skipped. Tokens may contain spaces; the last dim fields are the values.
// Row 0 stays zero. Rows for tokens absent from r are drawn from
// U(-InitScale, InitScale) using seed. Tokens not in idx are ignored.
func LoadVectors(r io.Reader, idx Indexer, dim int, seed int64) (*mat.Dense, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDim, dim)
	}
	rows := idx.Size()
	if rows < 2 {
		return nil, fmt.Errorf("%w: vocabulary has %d entries", ErrMatrixShape, rows)
	}

	m := mat.NewDense(rows, dim, nil)
	seen := make([]bool, rows)
	seen[0] = true

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	row := make([]float64, dim)
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if lineNo == 1 && len(fields) == 2 && isHeader(fields) {
			continue
		}
		if len(fields) < dim+1 {
			return nil, fmt.Errorf("%w: line %d has %d values, want %d", ErrVectorsFormat, lineNo, len(fields)-1, dim)
		}
		split := len(fields) - dim
		token := strings.Join(fields[:split], " ")
		i, ok := idx.Index(token)
		if !ok || i == 0 || seen[i] {
			continue
		}
		for j, f := range fields[split:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrVectorsFormat, lineNo, err)
			}
			row[j] = v
		}
		m.SetRow(i, row)
		seen[i] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))
	for i := 1; i < rows; i++ {
		if seen[i] {
			continue
		}
		for j := range row {
			row[j] = (rng.Float64()*2 - 1) * InitScale
		}
		m.SetRow(i, row)
	}
	return m, nil
}

func isHeader(fields []string) bool {
	for _, f := range fields {
		if _, err := strconv.Atoi(f); err != nil {
			return false
		}
	}
	return true
}
