package batch

import "runtime"

// Config controls batch processing of a directory of scans.
type Config struct {
	Workers         int      // worker pool size (0 = runtime.NumCPU())
	Format          string   // text, json or csv
	OutputDir       string   // where annotated copies are written ("" disables)
	OutputFile      string   // results file ("" prints to stdout)
	Recursive       bool     // descend into subdirectories
	IncludePatterns []string // filename glob allowlist (empty = all supported)
	ExcludePatterns []string // filename glob denylist
	ContinueOnError bool     // keep processing siblings after a fatal sheet error
	SaveThumbnails  bool     // shrink annotated copies to the template thumbnail size
}

// DefaultConfig returns batch defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         runtime.NumCPU(),
		Format:          "text",
		ContinueOnError: true,
		SaveThumbnails:  true,
	}
}
