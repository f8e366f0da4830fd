package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cadence/internal/trace"
)

// GoldenDir is the fixture directory used by RunWithGolden and AssertGolden.
const GoldenDir = "testdata/golden"

// GoldenSuffix is the extension of golden trace files.
const GoldenSuffix = ".golden"

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot be built. A trace mismatch fails
// the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result's trace against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := trace.MarshalLines(result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(GoldenSuffix),
	)
	g.Assert(t, name, data)
	return nil
}

// GoldenPath returns the golden file of a scenario inside dir.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, "golden", name+GoldenSuffix)
}

// GoldenStatus is the outcome of comparing a trace with its golden file.
type GoldenStatus string

const (
	GoldenMatch    GoldenStatus = "match"
	GoldenMismatch GoldenStatus = "mismatch"
	GoldenMissing  GoldenStatus = "missing"
	GoldenUpdated  GoldenStatus = "updated"
)

// CompareGolden compares result's trace with the file at path. With update
// set the file is (re)written and GoldenUpdated is returned. A missing file
// is not an error.
func CompareGolden(path string, result *Result, update bool) (GoldenStatus, error) {
	data, err := trace.MarshalLines(result.Trace)
	if err != nil {
		return "", err
	}

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("write golden file: %w", err)
		}
		return GoldenUpdated, nil
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return GoldenMissing, nil
	}
	if err != nil {
		return "", fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return GoldenMismatch, nil
	}
	return GoldenMatch, nil
}
