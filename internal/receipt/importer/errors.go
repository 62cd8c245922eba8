package importer

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	FailValidation  Kind = "validation"   // malformed or checksum-failed key, never reaches network
	FailDuplicate   Kind = "duplicate"    // already imported for this owner
	FailProvider    Kind = "provider"     // network, timeout, or upstream failure
	FailNotFound    Kind = "not_found"    // aggregator returned zero matches
	FailTransform   Kind = "transform"    // unrecognized date or malformed vendor shape
	FailPersistence Kind = "persistence"  // store read or write failed
)

// Failure is the typed error a pipeline run terminates with. It names the
// stage that failed; every later stage is guaranteed not to have run.
type Failure struct {
	Stage State
	Kind  Kind
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("import failed at %s (%s): %v", f.Stage, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf extracts the failure kind from err, or "" for non-pipeline errors.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
