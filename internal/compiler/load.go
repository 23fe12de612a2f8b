package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// LoadCatalog compiles the catalog declared at path, which is either a
// single .cue file or a directory holding one CUE package. The result is
// not validated; call Validate before using it.
func LoadCatalog(path string) (*ir.Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	ctx := cuecontext.New()
	var v cue.Value
	if info.IsDir() {
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no CUE files found in %s", path)
		}
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("no CUE instances loaded from %s", path)
		}
		if err := instances[0].Err; err != nil {
			return nil, fmt.Errorf("loading CUE files: %w", err)
		}
		v = ctx.BuildInstance(instances[0])
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", path, err)
		}
		v = ctx.CompileBytes(data, cue.Filename(path))
	}

	return CompileCatalog(v)
}

// FindCUEFiles walks dir and returns every .cue file below it.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
