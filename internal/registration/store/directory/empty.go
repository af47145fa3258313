package directory

import (
	"context"

	"registrar/internal/registration/ports"
)

// Empty is a directory with no records. Used when a deployment has no
// member or legacy database configured; every duplicate check passes.
type Empty struct{}

func (Empty) FindByEmail(context.Context, string) (*ports.DirectoryMatch, error) {
	return nil, nil
}

func (Empty) FindByPersonKey(context.Context, string, string, string) (*ports.DirectoryMatch, error) {
	return nil, nil
}

func (Empty) FindRepresentative(context.Context, string) (*ports.DirectoryMatch, error) {
	return nil, nil
}
