package create

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/viewly/acl"
	"github.com/viant/viewly/catalog"
	"github.com/viant/viewly/verror"
	"github.com/viant/viewly/view"
)

func (f *fixture) createView(t *testing.T, name string) {
	f.grants.
		Grant("alice", acl.CreateView|acl.Drop, acl.Object{Schema: "db", Name: name})
	request := f.request("SELECT id FROM t")
	request.Name = name
	_, err := f.service().Create(context.Background(), request)
	require.NoError(t, err)
}

func TestService_Drop(t *testing.T) {
	f := newFixture(t)
	f.createView(t, "v")
	invalidatedBefore := f.invalidated.count()

	result, err := f.service().Drop(context.Background(), &DropRequest{
		Principal: "alice",
		Targets:   []Target{{Schema: "db", Name: "v"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, len(result.Dropped))
	assert.Equal(t, invalidatedBefore+1, f.invalidated.count())

	kind, err := f.catalog.KindOf(context.Background(), "db", "v")
	require.NoError(t, err)
	assert.Equal(t, catalog.KindNone, kind)
}

func TestService_Drop_tableRecord(t *testing.T) {
	f := newFixture(t)
	//a record of a base table occupies the name
	fs := afs.New()
	err := fs.Upload(context.Background(), f.catalog.URL("db", "tt"), file.DefaultFileOsMode,
		strings.NewReader("PRECISE01\nengine=innodb\n"))
	require.NoError(t, err)
	f.grants.Grant("alice", acl.Drop, acl.Object{Schema: "db", Name: "tt"})

	_, err = f.service().Drop(context.Background(), &DropRequest{
		Principal: "alice",
		Targets:   []Target{{Schema: "db", Name: "tt"}},
	})
	assert.True(t, verror.Is(err, verror.KindTypeMismatch))
}

func TestService_Drop_missing(t *testing.T) {
	f := newFixture(t)
	f.grants.Grant("alice", acl.Drop, acl.Object{Schema: "db", Name: "ghost"})

	_, err := f.service().Drop(context.Background(), &DropRequest{
		Principal: "alice",
		Targets:   []Target{{Schema: "db", Name: "ghost"}},
	})
	assert.True(t, verror.Is(err, verror.KindNotFound))
}

func TestService_Drop_ifExists(t *testing.T) {
	f := newFixture(t)
	f.grants.Grant("alice", acl.Drop, acl.Object{Schema: "db", Name: "ghost"})

	result, err := f.service().Drop(context.Background(), &DropRequest{
		Principal: "alice",
		Targets:   []Target{{Schema: "db", Name: "ghost"}},
		IfExists:  true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, len(result.Warnings))
	assert.Equal(t, view.WarnDropMissingObject, result.Warnings[0].Code)
}

func TestService_Drop_multiName(t *testing.T) {
	f := newFixture(t)
	f.createView(t, "v")
	f.grants.Grant("alice", acl.Drop, acl.Object{Schema: "db", Name: "ghost"})

	//existing targets are still dropped, the missing one is reported after
	result, err := f.service().Drop(context.Background(), &DropRequest{
		Principal: "alice",
		Targets:   []Target{{Schema: "db", Name: "ghost"}, {Schema: "db", Name: "v"}},
	})
	assert.True(t, verror.Is(err, verror.KindNotFound))
	require.Equal(t, 1, len(result.Dropped))
	assert.Equal(t, "v", result.Dropped[0].Name)
}

func TestService_Drop_privilege(t *testing.T) {
	f := newFixture(t)
	f.createView(t, "v")

	_, err := f.service().Drop(context.Background(), &DropRequest{
		Principal: "bob",
		Targets:   []Target{{Schema: "db", Name: "v"}},
	})
	assert.True(t, verror.Is(err, verror.KindPrivilegeDenied))
}
