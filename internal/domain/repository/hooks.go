package repository

import "context"

// HookRequest describes one lifecycle hook execution. Exactly one of Script
// and Path is set.
type HookRequest struct {
	Name   string
	Script string
	Path   string
	Dir    string
	User   string
	Env    map[string]string
}

// HookRunner executes lifecycle hooks as a given user.
type HookRunner interface {
	Run(ctx context.Context, req HookRequest) error
}

// TokenIssuer issues capability tokens bound to an application and its source.
type TokenIssuer interface {
	// Issue returns existing when it is still valid for the same binding,
	// otherwise a freshly signed token.
	Issue(appID, sourceIdentity, existing string) (string, error)
}
