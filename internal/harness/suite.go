package harness

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// Filter is a glob matched against scenario file names without extension.
	Filter string

	// Update rewrites golden files instead of comparing them.
	Update bool

	// Options are passed to every Run.
	Options []Option
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

// ScenarioReport is the outcome of one scenario file in a suite.
type ScenarioReport struct {
	Name   string       `json:"name"`
	Path   string       `json:"path"`
	Pass   bool         `json:"pass"`
	Golden GoldenStatus `json:"golden,omitempty"`
	Errors []string     `json:"errors,omitempty"`
	Result *Result      `json:"-"`
}

// FindScenarios returns every scenario file under dir, sorted, skipping the
// golden directory. filter is a glob on the file name without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsScenarioFile(path) {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(d.Name(), filepath.Ext(path))
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// RunSuite loads and runs every scenario under dir. Golden files live in
// dir/golden; a scenario without one is judged on its assertions alone.
//
// The context is checked between scenarios.
func RunSuite(ctx context.Context, dir string, opts SuiteOptions) (*SuiteResult, error) {
	files, err := FindScenarios(dir, opts.Filter)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{
		Total:     len(files),
		Scenarios: make([]ScenarioReport, 0, len(files)),
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return suite, err
		}

		report := runSuiteScenario(dir, path, opts)
		if report.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
		suite.Scenarios = append(suite.Scenarios, report)
	}

	return suite, nil
}

func runSuiteScenario(dir, path string, opts SuiteOptions) ScenarioReport {
	report := ScenarioReport{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path: path,
	}

	scenario, err := LoadScenario(path)
	if err != nil {
		report.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return report
	}
	report.Name = scenario.Name

	result, err := Run(scenario, opts.Options...)
	if err != nil {
		report.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return report
	}
	report.Result = result
	report.Pass = result.Pass
	report.Errors = result.Errors

	status, err := CompareGolden(GoldenPath(dir, scenario.Name), result, opts.Update)
	if err != nil {
		report.Pass = false
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	report.Golden = status
	if status == GoldenMismatch {
		report.Pass = false
		report.Errors = append(report.Errors, "trace does not match golden file "+GoldenPath(dir, scenario.Name))
	}
	return report
}
