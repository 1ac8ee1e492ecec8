package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/charmbracelet/log"
)

// DirExtractor reads pre-extracted IR documents named <sha>.json from a
// directory.
type DirExtractor struct {
	Dir    string
	Logger *log.Logger
}

// ExtractIR loads <Dir>/<sha>.json.
func (d DirExtractor) ExtractIR(ctx context.Context, sha string) (*ir.MinimalIR, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sha == "" || filepath.Base(sha) != sha {
		return nil, fmt.Errorf("invalid sha %q", sha)
	}

	path := filepath.Join(d.Dir, sha+".json")
	m, warnings, err := ir.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no extracted IR for %s in %s", shortSHA(sha), d.Dir)
		}
		return nil, err
	}
	logWarnings(logger.OrDiscard(d.Logger), sha, warnings)
	return m, nil
}
