package create

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/viewly/acl"
	"github.com/viant/viewly/catalog"
	"github.com/viant/viewly/checksum"
	"github.com/viant/viewly/table"
	"github.com/viant/viewly/verror"
	"github.com/viant/viewly/view"
)

type invalidations struct {
	mux    sync.Mutex
	events []string
}

func (i *invalidations) Invalidate(ctx context.Context, schema, name string) {
	i.mux.Lock()
	defer i.mux.Unlock()
	i.events = append(i.events, schema+"."+name)
}

func (i *invalidations) count() int {
	i.mux.Lock()
	defer i.mux.Unlock()
	return len(i.events)
}

type fixture struct {
	catalog     *catalog.Service
	tables      *table.Registry
	grants      *acl.Grants
	invalidated *invalidations
}

func newFixture(t *testing.T) *fixture {
	result := &fixture{
		catalog: catalog.New(fmt.Sprintf("mem://localhost/viewly/create/%v", t.Name())),
		tables: table.NewRegistry(
			&table.Table{
				Schema: "db",
				Name:   "t",
				Columns: []*table.Column{
					{Name: "id", Type: "INT", NotNull: true},
					{Name: "name", Type: "VARCHAR"},
				},
				Keys: []*table.Key{{Name: "PRIMARY", Unique: true, Parts: []string{"id"}}},
			},
			&table.Table{
				Schema: "db",
				Name:   "o",
				Columns: []*table.Column{
					{Name: "t_id", Type: "INT", NotNull: true},
					{Name: "total", Type: "DECIMAL"},
				},
			},
			&table.Table{Schema: "db", Name: "tmp", Temporary: true,
				Columns: []*table.Column{{Name: "x", Type: "INT"}}},
		),
		grants:      acl.NewGrants(),
		invalidated: &invalidations{},
	}
	result.grants.
		Grant("alice", acl.CreateView|acl.Drop, acl.Object{Schema: "db", Name: "v"}).
		Grant("alice", acl.Select|acl.Insert|acl.Update|acl.Delete, acl.Object{Schema: "db", Name: "t"}).
		Grant("alice", acl.Select, acl.Object{Schema: "db", Name: "o"}).
		Grant("alice", acl.Select, acl.Object{Schema: "db", Name: "tmp"})
	return result
}

func (f *fixture) service(options ...Option) *Service {
	options = append([]Option{WithInvalidator(f.invalidated)}, options...)
	return New(f.catalog, f.tables, f.grants, options...)
}

func (f *fixture) request(queryText string) *Request {
	return &Request{
		Schema:    "db",
		Name:      "v",
		QueryText: queryText,
		Mode:      catalog.ModeCreate,
		Principal: "alice",
	}
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	request := f.request("SELECT id, name FROM t")

	result, err := f.service().Create(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result.Definition)
	assert.True(t, result.Definition.Updatable)
	assert.Equal(t, view.FirstRevision, result.Definition.Revision)
	assert.Equal(t, checksum.Compute(request.QueryText), result.Definition.MD5)
	assert.Equal(t, 0, len(result.Warnings))
	require.Equal(t, 2, len(result.Translation))
	assert.Equal(t, "id", result.Translation[0].Name)

	//the record round trips through the catalog with a verifiable digest
	stored, err := f.catalog.Load(context.Background(), "db", "v")
	require.NoError(t, err)
	assert.Equal(t, request.QueryText, stored.Query)
	assert.Equal(t, checksum.Ok, checksum.Verify(stored))

	//initial revision is invisible to the query cache
	assert.Equal(t, 0, f.invalidated.count())
}

func TestService_Create_replace(t *testing.T) {
	f := newFixture(t)
	service := f.service()

	request := f.request("SELECT id FROM t")
	request.Mode = catalog.ModeCreateOrReplace
	_, err := service.Create(context.Background(), request)
	require.NoError(t, err)

	replace := f.request("SELECT id, name FROM t")
	replace.Mode = catalog.ModeCreateOrReplace
	result, err := service.Create(context.Background(), replace)
	require.NoError(t, err)
	assert.Equal(t, view.FirstRevision+1, result.Definition.Revision)
	assert.Equal(t, 1, f.invalidated.count())
}

func TestService_Create_alreadyExists(t *testing.T) {
	f := newFixture(t)
	service := f.service()
	_, err := service.Create(context.Background(), f.request("SELECT id FROM t"))
	require.NoError(t, err)

	_, err = service.Create(context.Background(), f.request("SELECT id FROM t"))
	assert.True(t, verror.Is(err, verror.KindAlreadyExists))
}

func TestService_Create_columnList(t *testing.T) {
	f := newFixture(t)
	service := f.service()

	mismatch := f.request("SELECT id, name FROM t")
	mismatch.Columns = []string{"only_one"}
	_, err := service.Create(context.Background(), mismatch)
	assert.True(t, verror.Is(err, verror.KindColumnCountMismatch))

	renamed := f.request("SELECT id, name FROM t")
	renamed.Columns = []string{"pk", "label"}
	result, err := service.Create(context.Background(), renamed)
	require.NoError(t, err)
	assert.Equal(t, "pk", result.Translation[0].Name)
	assert.Equal(t, "label", result.Translation[1].Name)
	//renaming keeps the base column binding
	assert.Equal(t, "id", result.Translation[0].Column)
}

func TestService_Create_duplicateName(t *testing.T) {
	f := newFixture(t)
	request := f.request("SELECT id, name FROM t")
	request.Columns = []string{"a", "A"}
	_, err := f.service().Create(context.Background(), request)
	assert.True(t, verror.Is(err, verror.KindDuplicateFieldName))
}

func TestService_Create_starExpansion(t *testing.T) {
	f := newFixture(t)
	result, err := f.service().Create(context.Background(), f.request("SELECT * FROM t"))
	require.NoError(t, err)
	require.Equal(t, 2, len(result.Translation))
	assert.Equal(t, "id", result.Translation[0].Name)
	assert.Equal(t, "name", result.Translation[1].Name)
	assert.True(t, result.Translation[0].Updatable)
	assert.True(t, result.Definition.Updatable)
}

func TestService_Create_clauseGuards(t *testing.T) {
	var testCases = []struct {
		description string
		queryText   string
	}{
		{
			description: "bound parameter",
			queryText:   "SELECT id FROM t WHERE id = ?",
		},
		{
			description: "session variable",
			queryText:   "SELECT @last FROM t",
		},
		{
			description: "select into file",
			queryText:   "SELECT id FROM t INTO OUTFILE '/tmp/ids'",
		},
		{
			description: "outermost derived table",
			queryText:   "SELECT s.x FROM (SELECT id AS x FROM t) s",
		},
	}
	for _, testCase := range testCases {
		f := newFixture(t)
		_, err := f.service().Create(context.Background(), f.request(testCase.queryText))
		assert.True(t, verror.Is(err, verror.KindDefinitionNotAllowed), testCase.description)
	}
}

func TestService_Create_literalsAreData(t *testing.T) {
	//'?' and '@' inside string literals never trip the clause guards
	var testCases = []string{
		"SELECT id FROM t WHERE name = 'a@b.com'",
		"SELECT id FROM t WHERE name = 'why?'",
	}
	for _, queryText := range testCases {
		f := newFixture(t)
		result, err := f.service().Create(context.Background(), f.request(queryText))
		require.NoError(t, err, queryText)
		require.NotNil(t, result.Definition, queryText)
	}
}

func TestService_Create_temporaryTable(t *testing.T) {
	f := newFixture(t)
	_, err := f.service().Create(context.Background(), f.request("SELECT x FROM tmp"))
	assert.True(t, verror.Is(err, verror.KindTemporaryTableNotAllowed))
}

func TestService_Create_missingTable(t *testing.T) {
	f := newFixture(t)
	f.grants.Grant("alice", acl.Select, acl.Object{Schema: "db", Name: "ghost"})
	_, err := f.service().Create(context.Background(), f.request("SELECT id FROM ghost"))
	assert.True(t, verror.Is(err, verror.KindNoSuchTable))
}

func TestService_Create_selfReference(t *testing.T) {
	f := newFixture(t)
	f.grants.Grant("alice", acl.Select, acl.Object{Schema: "db", Name: "v"})
	request := f.request("SELECT id FROM v")
	request.Mode = catalog.ModeCreateOrReplace
	_, err := f.service().Create(context.Background(), request)
	assert.True(t, verror.Is(err, verror.KindNoSuchTable))
}

func TestService_Create_privileges(t *testing.T) {
	f := newFixture(t)
	service := f.service()

	//bob holds nothing at all
	request := f.request("SELECT id FROM t")
	request.Principal = "bob"
	_, err := service.Create(context.Background(), request)
	assert.True(t, verror.Is(err, verror.KindPrivilegeDenied))

	//replace needs DROP on the view on top of CREATE VIEW
	f.grants.
		Grant("carol", acl.CreateView, acl.Object{Schema: "db", Name: "v"}).
		Grant("carol", acl.Select, acl.Object{Schema: "db", Name: "t"})
	replace := f.request("SELECT id FROM t")
	replace.Principal = "carol"
	replace.Mode = catalog.ModeCreateOrReplace
	_, err = service.Create(context.Background(), replace)
	assert.True(t, verror.Is(err, verror.KindPrivilegeDenied))

	//plain create by carol is fine
	create := f.request("SELECT id FROM t")
	create.Principal = "carol"
	_, err = service.Create(context.Background(), create)
	assert.NoError(t, err)
}

func TestService_Create_columnAccess(t *testing.T) {
	f := newFixture(t)
	//dave can insert into t, which admits t inside a view definition, yet
	//holds SELECT on no column of it
	f.grants.
		Grant("dave", acl.CreateView, acl.Object{Schema: "db", Name: "v"}).
		Grant("dave", acl.Insert, acl.Object{Schema: "db", Name: "t"})
	request := f.request("SELECT id FROM t")
	request.Principal = "dave"
	_, err := f.service().Create(context.Background(), request)
	assert.True(t, verror.Is(err, verror.KindColumnAccessDenied))
}

func TestService_Create_columnEscalation(t *testing.T) {
	f := newFixture(t)
	//eve may read t, but her grant on the future view column exceeds the
	//base column grant
	f.grants.
		Grant("eve", acl.CreateView, acl.Object{Schema: "db", Name: "v"}).
		Grant("eve", acl.Select, acl.Object{Schema: "db", Name: "t"}).
		Grant("eve", acl.Update, acl.Object{Schema: "db", Name: "v", Column: "id"})
	request := f.request("SELECT id FROM t")
	request.Principal = "eve"
	_, err := f.service().Create(context.Background(), request)
	assert.True(t, verror.Is(err, verror.KindColumnAccessDenied))
}

func TestService_Create_mergeDowngrade(t *testing.T) {
	f := newFixture(t)
	request := f.request("SELECT COUNT(*) AS total FROM t")
	request.Algorithm = view.AlgorithmMerge
	result, err := f.service().Create(context.Background(), request)
	require.NoError(t, err)
	assert.False(t, result.Definition.Updatable)
	require.Equal(t, 1, len(result.Warnings))
	assert.Equal(t, view.WarnMergeDowngrade, result.Warnings[0].Code)
}

func TestService_Create_checkOptionGuard(t *testing.T) {
	f := newFixture(t)
	request := f.request("SELECT COUNT(*) AS total FROM t")
	request.CheckOption = view.CheckCascaded
	_, err := f.service().Create(context.Background(), request)
	assert.True(t, verror.Is(err, verror.KindNonUpdatableCheckOption))

	//nothing was stored
	_, err = f.catalog.Load(context.Background(), "db", "v")
	assert.True(t, verror.Is(err, verror.KindNotFound))
}

func TestService_Create_outerJoinNotUpdatable(t *testing.T) {
	f := newFixture(t)
	request := f.request("SELECT t.id, o.total FROM t LEFT JOIN o ON t.id = o.t_id")
	result, err := f.service().Create(context.Background(), request)
	require.NoError(t, err)
	assert.False(t, result.Definition.Updatable)
}

func TestService_Create_barrierWaitFailure(t *testing.T) {
	f := newFixture(t)
	barrier := catalog.NewReadBarrier()
	unfreeze := barrier.Freeze()
	defer unfreeze()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.service(WithBarrier(barrier)).Create(ctx, f.request("SELECT id FROM t"))
	assert.True(t, verror.Is(err, verror.KindLockWaitFailed))

	_, err = f.catalog.Load(context.Background(), "db", "v")
	assert.True(t, verror.Is(err, verror.KindNotFound))
}
