// Package acl defines the privilege collaborator contract used by view
// creation and resolution; grant storage belongs to the host engine.
package acl

import (
	"context"
	"strings"
)

// Privilege is a grant bitmask.
type Privilege uint16

const (
	Select Privilege = 1 << iota
	Insert
	Update
	Delete
	CreateView
	Drop
	ShowView
)

// AnyView covers the privileges any of which make a table usable inside a
// view definition.
const AnyView = Select | Insert | Update | Delete

// Object addresses a grant target; Column empty means table level.
type Object struct {
	Schema string
	Name   string
	Column string
}

// Service checks effective privileges of a principal.
type Service interface {
	//Check reports whether the principal holds every bit of privilege.
	Check(ctx context.Context, principal string, privilege Privilege, object Object) bool
	//ColumnGrant returns the effective privilege bitmask on a column.
	ColumnGrant(ctx context.Context, principal string, object Object) Privilege
}

// Grants is a static grant set keyed by principal and object.
type Grants struct {
	grants map[string]Privilege
}

// NewGrants creates an empty static grant set.
func NewGrants() *Grants {
	return &Grants{grants: map[string]Privilege{}}
}

// Grant adds privilege bits for principal on object.
func (g *Grants) Grant(principal string, privilege Privilege, object Object) *Grants {
	g.grants[grantKey(principal, object)] |= privilege
	return g
}

// Check implements Service; column grants inherit table grants.
func (g *Grants) Check(ctx context.Context, principal string, privilege Privilege, object Object) bool {
	return g.effective(principal, object)&privilege == privilege
}

// ColumnGrant implements Service.
func (g *Grants) ColumnGrant(ctx context.Context, principal string, object Object) Privilege {
	return g.effective(principal, object)
}

func (g *Grants) effective(principal string, object Object) Privilege {
	result := g.grants[grantKey(principal, Object{Schema: object.Schema, Name: object.Name})]
	if object.Column != "" {
		result |= g.grants[grantKey(principal, object)]
	}
	return result
}

func grantKey(principal string, object Object) string {
	return strings.Join([]string{principal, object.Schema, object.Name, object.Column}, "\x00")
}

// Permissive grants everything; it backs configurations with access control
// disabled.
type Permissive struct{}

func (p Permissive) Check(ctx context.Context, principal string, privilege Privilege, object Object) bool {
	return true
}

func (p Permissive) ColumnGrant(ctx context.Context, principal string, object Object) Privilege {
	return AnyView | CreateView | Drop | ShowView
}
