package autovers

import "errors"

var (
	// ErrInvalidVersion is returned when a string does not contain a version.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrInvalidTemplate is returned for malformed build metadata templates.
	ErrInvalidTemplate = errors.New("invalid metadata template")

	// ErrUnsupportedGit is returned when the installed git is too old.
	ErrUnsupportedGit = errors.New("unsupported git version")

	// ErrNotRepository is returned when the working directory is not inside a git work tree.
	ErrNotRepository = errors.New("not a git repository")

	// ErrUnresolved wraps every resolution failure.
	ErrUnresolved = errors.New("unable to resolve version")

	// ErrTagBelowRange means the nearest tag is older than the version in the ref name.
	ErrTagBelowRange = errors.New("tag is below the ref version range")

	// ErrTagSearchExhausted means the iteration cap was hit before an in-range tag was found.
	ErrTagSearchExhausted = errors.New("tag search exceeded iteration limit")

	// ErrForkPoint means the fork point against the parent branch could not be found.
	ErrForkPoint = errors.New("fork point not found")

	// ErrEmptyRepository means HEAD has no commits.
	ErrEmptyRepository = errors.New("repository has no commits")

	// ErrBaselineNotFound is returned when no baseline file exists.
	ErrBaselineNotFound = errors.New("baseline file not found")

	// ErrPersist is returned when the baseline file cannot be written.
	ErrPersist = errors.New("writing baseline file")
)
