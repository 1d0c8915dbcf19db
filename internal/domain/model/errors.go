package model

import (
	"errors"
	"fmt"
)

var (
	ErrFetch                = errors.New("source fetch failed")
	ErrBuild                = errors.New("image build failed")
	ErrDescriptorParse      = errors.New("descriptor missing or invalid")
	ErrHookExecution        = errors.New("hook execution failed")
	ErrTokenIssuance        = errors.New("capability token issuance failed")
	ErrProvisioning         = errors.New("storage provisioning failed")
	ErrApplyTimeout         = errors.New("apply timed out")
	ErrApply                = errors.New("apply failed")
	ErrVerificationMismatch = errors.New("application applied but not running")
	ErrReconciliationParse  = errors.New("descriptor could not be parsed for reconciliation")
	ErrEnvTransfer          = errors.New("environment transfer could not be applied")
	ErrAlreadyInProgress    = errors.New("operation already in progress")
	ErrNotFound             = errors.New("application not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrNotInstalled         = errors.New("application is not installed")
)

// Stage names a pipeline step.
type Stage string

const (
	StageFetch           Stage = "fetch"
	StageBuild           Stage = "build"
	StageDescriptor      Stage = "descriptor"
	StageRename          Stage = "rename"
	StagePreInstallHook  Stage = "pre_install_hook"
	StageToken           Stage = "token"
	StageReconcile       Stage = "reconcile"
	StagePreprocess      Stage = "preprocess"
	StageProvision       Stage = "provision"
	StageWriteDescriptor Stage = "write_descriptor"
	StageApply           Stage = "apply"
	StageOwnership       Stage = "ownership"
	StageVerify          Stage = "verify"
	StagePersist         Stage = "persist"
	StagePostInstallHook Stage = "post_install_hook"
	StageSync            Stage = "sync"
	// StageDone tags the last event of a successful run.
	StageDone Stage = "done"
)

// StageError carries the pipeline stage that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failing stage recorded in err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// ApplyFailure is the structured failure returned by a deployment backend.
// Timeout is set by the backend itself so callers never inspect Output to
// classify the failure.
type ApplyFailure struct {
	Timeout bool
	Output  string
	Err     error
}

func (e *ApplyFailure) Error() string {
	kind := "failed"
	if e.Timeout {
		kind = "timed out"
	}
	if e.Err != nil {
		return fmt.Sprintf("apply %s: %v", kind, e.Err)
	}
	return "apply " + kind
}

func (e *ApplyFailure) Unwrap() error {
	return e.Err
}

// Is matches ErrApplyTimeout or ErrApply depending on the failure kind.
func (e *ApplyFailure) Is(target error) bool {
	if e.Timeout {
		return target == ErrApplyTimeout
	}
	return target == ErrApply
}
