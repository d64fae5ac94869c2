package driver

import (
	"go.uber.org/zap"

	"qtgen/internal/report"
)

// outcome is the single class an output path lands in during a run.
type outcome int

const (
	outcomeGenerated outcome = iota + 1
	outcomeUpdated
	outcomeUntouched
	outcomeErrored
	outcomeDeleted
)

func (o outcome) String() string {
	switch o {
	case outcomeGenerated:
		return "generated"
	case outcomeUpdated:
		return "updated"
	case outcomeUntouched:
		return "untouched"
	case outcomeErrored:
		return "errored"
	case outcomeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// classification is the run-scoped partition of output paths. Each path is
// placed once; order of placement is kept so the report follows the walk.
type classification struct {
	logger *zap.Logger

	byOutput map[string]outcome
	order    []string

	errors []report.FileError
}

func newClassification(logger *zap.Logger) *classification {
	return &classification{
		logger:   logger,
		byOutput: make(map[string]outcome),
	}
}

// place records path under o. A second placement of the same path breaks
// the partition and is refused.
func (c *classification) place(path string, o outcome) bool {
	if prev, ok := c.byOutput[path]; ok {
		c.logger.DPanic("output classified twice",
			zap.String("output", path), zap.Stringer("first", prev), zap.Stringer("second", o))
		return false
	}
	c.byOutput[path] = o
	c.order = append(c.order, path)
	return true
}

func (c *classification) fail(path, file, message string) {
	c.errors = append(c.errors, report.FileError{File: file, Message: message})
	if path != "" {
		c.place(path, outcomeErrored)
	}
}

func (c *classification) report(inputDir, outputDir string) *report.Report {
	r := &report.Report{InputDir: inputDir, OutputDir: outputDir}
	for _, p := range c.order {
		switch c.byOutput[p] {
		case outcomeGenerated:
			r.Generated = append(r.Generated, p)
		case outcomeUpdated:
			r.Updated = append(r.Updated, p)
		case outcomeUntouched:
			r.Untouched = append(r.Untouched, p)
		case outcomeDeleted:
			r.Deleted = append(r.Deleted, p)
		}
	}
	if len(c.errors) > 0 {
		r.Errors = append([]report.FileError(nil), c.errors...)
	}
	return r
}
