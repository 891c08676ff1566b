package acl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrants(t *testing.T) {
	grants := NewGrants().
		Grant("alice", CreateView|Select, Object{Schema: "db", Name: "v"}).
		Grant("alice", Select, Object{Schema: "db", Name: "t"}).
		Grant("alice", Update, Object{Schema: "db", Name: "t", Column: "name"})

	ctx := context.Background()
	assert.True(t, grants.Check(ctx, "alice", CreateView, Object{Schema: "db", Name: "v"}))
	assert.False(t, grants.Check(ctx, "alice", Drop, Object{Schema: "db", Name: "v"}))
	assert.False(t, grants.Check(ctx, "bob", Select, Object{Schema: "db", Name: "t"}))

	//column grant inherits the table grant
	assert.Equal(t, Select|Update, grants.ColumnGrant(ctx, "alice", Object{Schema: "db", Name: "t", Column: "name"}))
	assert.Equal(t, Select, grants.ColumnGrant(ctx, "alice", Object{Schema: "db", Name: "t", Column: "id"}))
}
