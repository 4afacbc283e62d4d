// Package processor runs the feature pipeline over files in bulk.
package processor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/geoprops/internal/calc"
	"github.com/woozymasta/geoprops/internal/geo"
)

// DefaultConcurrency is used when Options.Concurrency is not positive.
const DefaultConcurrency = 8

// Options controls a batch run.
type Options struct {
	Encoding

	OutDir      string
	Concurrency int
	Force       bool
}

// Result describes the outcome for one input file.
type Result struct {
	Path    string
	Output  string
	Area    float64
	Geohash string
	Skipped bool
	Err     error
}

type job struct {
	index int
	path  string
}

// ProcessFiles calculates properties for every file in paths and writes each
// augmented feature to OutDir as <name>.props.<format>.
// Results are returned in input order; per-file failures are reported in Result.Err.
func ProcessFiles(c *calc.Calculator, paths []string, opts Options) []Result {
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]Result, len(paths))
	jobs := make(chan job, len(paths))

	go func() {
		for i, p := range paths {
			jobs <- job{index: i, path: p}
		}
		close(jobs)
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res := processFile(c, j.path, opts)
				if res.Err != nil {
					log.Error().
						Err(res.Err).
						Str("path", j.path).
						Msg("Failed to process feature file")
				}
				results[j.index] = res
			}
		}()
	}
	wg.Wait()

	return results
}

// OutputPath returns where the result for input is written.
func OutputPath(outDir, input, format string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, name+".props."+format)
}

func processFile(c *calc.Calculator, path string, opts Options) Result {
	res := Result{Path: path, Output: OutputPath(opts.OutDir, path, opts.Format)}

	// Check existence if not forcing overwrite
	if !opts.Force {
		if info, err := os.Stat(res.Output); err == nil && info.Size() > 0 {
			log.Debug().Str("path", res.Output).Msg("Output exists, skipping")
			res.Skipped = true
			return res
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}

	payload, err := ToJSON(raw, isYAMLPath(path))
	if err != nil {
		res.Err = errors.Wrap(err, path)
		return res
	}

	out, derived, err := c.Process(payload)
	if err != nil {
		res.Err = err
		return res
	}
	res.Area = derived.Area
	res.Geohash = geo.Geohash(c.Transformer().Source(), derived.Centroid)

	data, err := Marshal(out, opts.Encoding)
	if err != nil {
		res.Err = errors.NewAssertionErrorWithWrappedErrf(err, "encode %s", path)
		return res
	}

	if err := writeFile(res.Output, data); err != nil {
		res.Err = err
		return res
	}

	log.Debug().
		Str("path", path).
		Str("output", res.Output).
		Float64("area", res.Area).
		Str("centroid_geohash", res.Geohash).
		Msg("Feature file processed")

	return res
}

// writeFile writes data next to path and renames it into place.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".props-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
