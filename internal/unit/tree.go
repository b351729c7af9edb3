package unit

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/FelixKimmerle/nobcpp"
	"github.com/FelixKimmerle/nobcpp/internal/depfile"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// BuildTreeFromCPPFiles recursively walks rootDir and returns a link unit
// producing target from every .cpp file found. When a compiler-written .d
// file from an earlier build exists for an object, it is parsed and its
// headers are attached as header deps, so that header edits dirty the
// object on the next plan.
func BuildTreeFromCPPFiles(rootDir, target string) (*Unit, error) {
	top := New("", target)

	var compiles []*Unit
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".cpp") {
			return nil
		}
		compiles = append(compiles, New(path, nobcpp.ObjectPath(path)))
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("scanning %s: %w", rootDir, err)
	}

	// The .d sidecars are independent; parse them in parallel. Each
	// goroutine only touches its own compile unit.
	var eg errgroup.Group
	for _, cu := range compiles {
		cu := cu // copy
		eg.Go(func() error {
			d := nobcpp.DepFilePath(cu.Target())
			if _, err := os.Stat(d); err != nil {
				return nil // no previous build
			}
			headers, err := depfile.Parse(d)
			if err != nil {
				return err
			}
			for _, h := range headers {
				cu.AddDep(New(h, ""))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, cu := range compiles {
		top.AddDep(cu)
	}
	return top, nil
}
