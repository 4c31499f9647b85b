// Package identity is the core's contract against the identity service: a
// bearer token carries an opaque subject id, and resolving one never raises
// an exception for an invalid or missing token — it returns a tagged result
// instead, mirroring how every other boundary in this system reports
// failure (see internal/apperror).
package identity

import "github.com/fleetward/dispatch/internal/apperror"

// Subject is the opaque identifier carried by a bearer token: a driver id,
// or the admin sentinel.
type Subject struct {
	ID      int64
	IsAdmin bool
}

// Resolver verifies a bearer token and resolves its subject.
type Resolver interface {
	Resolve(token string) Result
}

// Result is the tagged outcome of a token resolution: exactly one of
// Subject or Err is meaningful, discriminated by Ok.
type Result struct {
	Ok      bool
	Subject Subject
	Err     error
}

// ok builds a successful Result.
func ok(sub Subject) Result {
	return Result{Ok: true, Subject: sub}
}

// errResult builds a failed Result carrying an apperror.Kind.
func errResult(kind apperror.Kind, message string) Result {
	return Result{Ok: false, Err: apperror.New(kind, message, nil)}
}

// StaticResolver resolves tokens against a fixed in-memory token-to-subject
// map. Suitable for tests and single-node deployments; a production
// deployment would implement Resolver against the real identity service.
type StaticResolver struct {
	tokens map[string]Subject
}

// NewStaticResolver builds a StaticResolver from a fixed token map.
func NewStaticResolver(tokens map[string]Subject) *StaticResolver {
	return &StaticResolver{tokens: tokens}
}

// Resolve looks up a bearer token, returning a tagged Result rather than an error.
func (r *StaticResolver) Resolve(token string) Result {
	if token == "" {
		return errResult(apperror.KindValidation, "missing bearer token")
	}
	sub, found := r.tokens[token]
	if !found {
		return errResult(apperror.KindAuthorization, "unrecognized bearer token")
	}
	return ok(sub)
}
