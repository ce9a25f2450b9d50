package auth

import "context"

// IdentityLoader rebuilds an Identity from the id stored in a session.
// ok=false means the identity no longer exists; err is reserved for
// backend faults.
type IdentityLoader interface {
	LoadIdentity(ctx context.Context, id string) (identity Identity, ok bool, err error)
}

// IdentityLoaderFunc adapts a function to IdentityLoader.
type IdentityLoaderFunc func(ctx context.Context, id string) (Identity, bool, error)

func (f IdentityLoaderFunc) LoadIdentity(ctx context.Context, id string) (Identity, bool, error) {
	return f(ctx, id)
}

// StaticLoader trusts the stored id and manufactures an Identity from it.
type StaticLoader struct{}

func (StaticLoader) LoadIdentity(_ context.Context, id string) (Identity, bool, error) {
	if id == "" {
		return Identity{}, false, nil
	}
	return Identity{ID: id}, true, nil
}
