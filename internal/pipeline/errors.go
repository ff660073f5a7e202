package pipeline

import "errors"

// Step error taxonomy. Every failure is fatal to the run; these sentinels
// let callers name the failed step with errors.Is.
var (
	ErrDependency = errors.New("dependency provisioning failed")
	ErrBuild      = errors.New("build failed")
	ErrAssemble   = errors.New("artifact assembly failed")
	ErrArchive    = errors.New("archive creation failed")
	ErrLocked     = errors.New("another packaging run is in progress")
)
