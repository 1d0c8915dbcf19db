package main

import "errors"

type usageError struct {
	error
}

func newUsageError(msg string) usageError {
	return usageError{error: errors.New(msg)}
}

var (
	errorWantedNoArgs = newUsageError("expected no (non-flag) arguments")
	errorWantedOneArg = newUsageError("expected exactly one argument")
)

func exactlyOneArg(args []string) error {
	if len(args) != 1 {
		return errorWantedOneArg
	}
	return nil
}
