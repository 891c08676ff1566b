package create

import (
	"context"
	"strings"

	"github.com/viant/viewly/acl"
	"github.com/viant/viewly/catalog"
	"github.com/viant/viewly/verror"
	"github.com/viant/viewly/view"
)

// Target addresses one view to drop.
type Target struct {
	Schema string
	Name   string
}

// DropRequest carries one DROP VIEW statement; a single statement may name
// several views.
type DropRequest struct {
	Principal string
	Targets   []Target
	IfExists  bool
}

// DropResult reports what was removed and advisory warnings for names
// tolerated by IF EXISTS.
type DropResult struct {
	Dropped  []Target
	Warnings []view.Warning
}

// Drop removes the named views under the schema change lock. A name bound to
// a non view record fails the whole statement with TypeMismatch. Missing
// names become advisory warnings under IF EXISTS; otherwise every existing
// target is still dropped and the missing ones are reported together as
// NotFound afterwards.
func (s *Service) Drop(ctx context.Context, request *DropRequest) (*DropResult, error) {
	release := s.catalog.SchemaLock().Lock()
	defer release()

	result := &DropResult{}
	var missing []string
	for _, target := range request.Targets {
		object := acl.Object{Schema: target.Schema, Name: target.Name}
		if !s.acl.Check(ctx, request.Principal, acl.Drop, object) {
			return nil, verror.New(verror.KindPrivilegeDenied, target.Schema, target.Name)
		}
		kind, err := s.catalog.KindOf(ctx, target.Schema, target.Name)
		if err != nil {
			return nil, err
		}
		switch kind {
		case catalog.KindNone:
			if request.IfExists {
				result.Warnings = append(result.Warnings, view.Warning{
					Code:    view.WarnDropMissingObject,
					Message: "unknown view " + target.Schema + "." + target.Name,
				})
				continue
			}
			missing = append(missing, target.Schema+"."+target.Name)
		case catalog.KindTable:
			return nil, verror.New(verror.KindTypeMismatch, target.Schema, target.Name)
		case catalog.KindView:
			if err = s.catalog.Delete(ctx, target.Schema, target.Name); err != nil {
				return nil, err
			}
			s.invalidator.Invalidate(ctx, target.Schema, target.Name)
			result.Dropped = append(result.Dropped, target)
			s.logger.Info("view dropped", "schema", target.Schema, "view", target.Name)
		}
	}
	if len(missing) > 0 {
		return result, verror.Newf(verror.KindNotFound, "", "", "unknown views: %v", strings.Join(missing, ","))
	}
	return result, nil
}
