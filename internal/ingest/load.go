package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dqa/internal/dataset"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Default file names inside a data directory.
const (
	ObservationsFile = "observations.csv"
	TreeFile         = "tree.csv"
	CatalogFile      = "catalog.csv"
	AssignmentsFile  = "assignments.csv"
)

// Paths locates the extraction tables. Assignments is optional.
type Paths struct {
	Observations string
	Tree         string
	Catalog      string
	Assignments  string
}

// DirPaths returns the default table paths inside dir. The assignments path
// is only set when the file exists.
func DirPaths(dir string) Paths {
	p := Paths{
		Observations: filepath.Join(dir, ObservationsFile),
		Tree:         filepath.Join(dir, TreeFile),
		Catalog:      filepath.Join(dir, CatalogFile),
	}
	if _, err := os.Stat(filepath.Join(dir, AssignmentsFile)); err == nil {
		p.Assignments = filepath.Join(dir, AssignmentsFile)
	}
	return p
}

// Dataset is the loaded, validated input of one run.
type Dataset struct {
	Observations []dataset.Observation
	Tree         *dataset.Tree
	Catalog      *dataset.Catalog
}

// Load reads the three tables in parallel. The first error cancels the
// remaining reads.
func Load(ctx context.Context, paths Paths, mode dataset.KeyMode) (*Dataset, error) {
	var ds Dataset
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return withFile(ctx, paths.Observations, func(r io.Reader) error {
			obs, err := ReadObservations(r, mode)
			ds.Observations = obs
			return err
		})
	})
	g.Go(func() error {
		return withFile(ctx, paths.Tree, func(r io.Reader) error {
			tree, err := ReadTree(r)
			ds.Tree = tree
			return err
		})
	})
	g.Go(func() error {
		return withFile(ctx, paths.Catalog, func(r io.Reader) error {
			if paths.Assignments == "" {
				cat, err := ReadCatalog(r, nil, mode)
				ds.Catalog = cat
				return err
			}
			return withFile(ctx, paths.Assignments, func(a io.Reader) error {
				cat, err := ReadCatalog(r, a, mode)
				ds.Catalog = cat
				return err
			})
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().
		Int("observations", len(ds.Observations)).
		Int("units", ds.Tree.Len()).
		Int("catalogEntries", len(ds.Catalog.Entries())).
		Msg("Input tables loaded")
	return &ds, nil
}

func withFile(ctx context.Context, path string, fn func(io.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	log.Debug().Str("path", path).Msg("Loaded table")
	return nil
}
