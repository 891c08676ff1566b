package resolve

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/viant/sqlparser"
	"github.com/viant/sqlparser/expr"
	"github.com/viant/sqlparser/node"
	"github.com/viant/sqlparser/query"
	"github.com/viant/viewly/acl"
	"github.com/viant/viewly/catalog"
	"github.com/viant/viewly/table"
	"github.com/viant/viewly/verror"
	"github.com/viant/viewly/view"
)

// Resolver expands view references inside an enclosing statement.
type Resolver struct {
	catalog *catalog.Service
	tables  table.Service
	acl     acl.Service
	logger  *slog.Logger
	metrics *Metrics
}

// New creates a resolver.
func New(catalogService *catalog.Service, tables table.Service, aclService acl.Service, options ...Option) *Resolver {
	result := &Resolver{catalog: catalogService, tables: tables, acl: aclService}
	for _, option := range options {
		option(result)
	}
	if result.logger == nil {
		result.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return result
}

// Option customizes a resolver.
type Option func(*Resolver)

// WithLogger supplies a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithMetrics enables operation counters.
func WithMetrics(metrics *Metrics) Option {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// Expand resolves a single view reference of stmt: it loads the persisted
// definition when absent, re-parses it into an independent sub tree, splices
// the view's own tables into the statement's global table sequence right
// after the reference and settles the effective algorithm. Expanding an
// already expanded reference is a no-op. Any failure past the splice point
// restores the table sequence exactly as it was.
func (r *Resolver) Expand(ctx context.Context, stmt *Statement, ref *TableRef) error {
	if ref.Expanded() {
		return nil
	}
	onDone := r.begin()
	defer func() {
		onDone(time.Now())
	}()

	if err := r.ensureDefinition(ctx, ref); err != nil {
		return err
	}
	if err := r.checkCycle(ref); err != nil {
		return err
	}
	//transient nested parse pass scoped to this resolution; the sub tree is
	//published on the reference only once expansion can no longer fail
	sel, err := sqlparser.ParseQuery(ref.Definition.Query)
	if err != nil {
		return verror.Wrap(err, verror.KindViewCorrupt, ref.Schema, ref.Name)
	}
	if sel == nil || len(sel.List) == 0 {
		return verror.Newf(verror.KindViewCorrupt, ref.Schema, ref.Name, "stored text is not a select")
	}
	if err = r.checkAccess(ctx, stmt, ref, sel); err != nil {
		return err
	}

	viewTables := r.viewTables(ref, sel)
	at := stmt.IndexOf(ref)
	if at == -1 {
		return verror.Newf(verror.KindViewCorrupt, ref.Schema, ref.Name, "reference is not part of the statement")
	}
	record := stmt.insertAfter(at, viewTables)
	if err = r.expandSpliced(ctx, stmt, ref, sel, viewTables); err != nil {
		stmt.removeRange(record)
		r.count(metricRollback)
		return err
	}
	return nil
}

// expandSpliced continues past the splice point; its error return triggers
// the sequence rollback in Expand.
func (r *Resolver) expandSpliced(ctx context.Context, stmt *Statement, ref *TableRef, sel *query.Select, viewTables []*TableRef) error {
	if err := ctx.Err(); err != nil {
		return verror.Wrap(err, verror.KindLockWaitFailed, ref.Schema, ref.Name)
	}
	//single select defining query inherits the caller's lock intent
	if sel.Union == nil {
		for _, viewTable := range viewTables {
			viewTable.LockMode = ref.LockMode
		}
	}
	for _, viewTable := range viewTables {
		if err := r.bindTable(ctx, viewTable); err != nil {
			return err
		}
	}
	if ref.Prelock {
		//placeholder pass for implicit table locking, no tree mutation
		ref.Select = sel
		ref.ViewTables = viewTables
		return nil
	}
	if err := r.checkWriteAccess(ctx, stmt, viewTables); err != nil {
		return err
	}
	canonical := ref.Definition.Query
	if ref.Definition.Algorithm != view.AlgorithmMaterialize && stmt.AllowMerge &&
		view.CanMerge(sel, canonical) {
		r.merge(stmt, ref, sel, viewTables)
	} else {
		r.materialize(stmt, ref, sel, viewTables)
	}
	return nil
}

func (r *Resolver) merge(stmt *Statement, ref *TableRef, sel *query.Select, viewTables []*TableRef) {
	ref.Effective = view.AlgorithmMerge
	ref.Updatable = ref.Definition.Updatable
	ref.EffectiveCheck = ref.Definition.CheckOption
	ref.Translation = view.NewTranslation(sel)
	//nested join wrapper: in the outer tree the view behaves as one nested
	//join node, children keep a navigation back-link only
	wrapper := &NestedJoin{Of: ref, Children: viewTables}
	for _, viewTable := range viewTables {
		viewTable.Embedding = wrapper
	}
	ref.NestedJoin = wrapper
	//the defining filter combines with the outer predicate downstream
	ref.Where = sel.Qualify
	r.relocateSubqueries(stmt, ref, sel)
	//linked into the flat select list, never into the executed tree
	stmt.Selects = append(stmt.Selects, sel)
	ref.Select = sel
	ref.ViewTables = viewTables
	r.count(metricMerge)
	r.logger.Debug("view merged", "schema", ref.Schema, "view", ref.Name, "tables", len(viewTables))
}

func (r *Resolver) materialize(stmt *Statement, ref *TableRef, sel *query.Select, viewTables []*TableRef) {
	ref.Effective = view.AlgorithmMaterialize
	//a materialized reference is never updatable, whatever was computed at
	//registration time
	ref.Updatable = false
	ref.EffectiveCheck = view.CheckNone
	ref.Derived = &Derived{Select: sel, Alias: ref.Alias}
	stmt.Selects = append(stmt.Selects, sel)
	ref.Select = sel
	ref.ViewTables = viewTables
	r.count(metricMaterialize)
	r.logger.Debug("view materialized", "schema", ref.Schema, "view", ref.Name)
}

// relocateSubqueries re-attaches subqueries of the discarded inner select
// under the caller's select, stopping at the first subquery already owned by
// an enclosing view so that none is attached twice.
func (r *Resolver) relocateSubqueries(stmt *Statement, ref *TableRef, sel *query.Select) {
	for _, candidate := range collectSubqueries(sel) {
		if stmt.hasSubquery(candidate) {
			break
		}
		stmt.Subqueries = append(stmt.Subqueries, &Subquery{Select: candidate, Owner: ref.TopView()})
	}
}

func collectSubqueries(sel *query.Select) []*query.Select {
	var result []*query.Select
	sqlparser.Traverse(sel, func(candidate node.Node) bool {
		if inner, ok := candidate.(*query.Select); ok && inner != sel {
			result = append(result, inner)
		}
		return true
	})
	return result
}

// bindTable attaches base table metadata to a spliced reference; a name that
// is itself a registered view stays unbound until its own expansion.
func (r *Resolver) bindTable(ctx context.Context, ref *TableRef) error {
	opened, err := r.tables.Open(ctx, ref.Schema, ref.Name, ref.LockMode)
	if err == nil {
		ref.Table = opened
		return nil
	}
	if verror.Is(err, verror.KindNoSuchTable) {
		kind, kindErr := r.catalog.KindOf(ctx, ref.Schema, ref.Name)
		if kindErr == nil && kind == catalog.KindView {
			return nil
		}
	}
	return err
}

func (r *Resolver) ensureDefinition(ctx context.Context, ref *TableRef) error {
	if ref.Definition != nil {
		return nil
	}
	definition, err := r.catalog.Load(ctx, ref.Schema, ref.Name)
	if err != nil {
		return err
	}
	ref.Definition = definition
	return nil
}

// checkCycle rejects a view that is reached again while one of its own
// expansions is still in progress.
func (r *Resolver) checkCycle(ref *TableRef) error {
	for owner := ref.BelongsTo; owner != nil; owner = owner.BelongsTo {
		if owner.Schema == ref.Schema && owner.Name == ref.Name {
			return verror.Newf(verror.KindViewCorrupt, ref.Schema, ref.Name, "cyclic view reference")
		}
	}
	return nil
}

// checkAccess re-runs delegated privilege checks appropriate to the outer
// operation.
func (r *Resolver) checkAccess(ctx context.Context, stmt *Statement, ref *TableRef, sel *query.Select) error {
	if ref.Prelock {
		return nil
	}
	viewObject := acl.Object{Schema: ref.Schema, Name: ref.Name}
	switch stmt.Kind {
	case KindExplain:
		if !r.checkTables(ctx, stmt, ref, sel, acl.Select) || !r.acl.Check(ctx, stmt.Principal, acl.ShowView, viewObject) {
			return verror.Newf(verror.KindPrivilegeDenied, ref.Schema, ref.Name, "EXPLAIN requires SHOW VIEW and SELECT on underlying tables")
		}
	case KindShowCreate:
		if !r.acl.Check(ctx, stmt.Principal, acl.ShowView, viewObject) {
			return verror.New(verror.KindPrivilegeDenied, ref.Schema, ref.Name)
		}
	default:
		if !r.checkTables(ctx, stmt, ref, sel, acl.Select) {
			return verror.New(verror.KindPrivilegeDenied, ref.Schema, ref.Name)
		}
	}
	return nil
}

// checkWriteAccess verifies write privilege on the view's own tables once
// the statement's write intent is settled.
func (r *Resolver) checkWriteAccess(ctx context.Context, stmt *Statement, viewTables []*TableRef) error {
	var privilege acl.Privilege
	switch stmt.Kind {
	case KindUpdate:
		privilege = acl.Update
	case KindDelete:
		privilege = acl.Delete
	default:
		return nil
	}
	for _, viewTable := range viewTables {
		object := acl.Object{Schema: viewTable.Schema, Name: viewTable.Name}
		if !r.acl.Check(ctx, stmt.Principal, privilege, object) {
			return verror.New(verror.KindPrivilegeDenied, viewTable.Schema, viewTable.Name)
		}
	}
	return nil
}

func (r *Resolver) checkTables(ctx context.Context, stmt *Statement, ref *TableRef, sel *query.Select, privilege acl.Privilege) bool {
	for _, candidate := range tableNames(sel) {
		schema := candidate.schema
		if schema == "" {
			//unqualified names in the stored text live in the view's schema
			schema = ref.Schema
		}
		object := acl.Object{Schema: schema, Name: candidate.name}
		if !r.acl.Check(ctx, stmt.Principal, privilege, object) {
			return false
		}
	}
	return true
}

// viewTables builds the reference list of the defining query's own FROM
// clause; every entry belongs to the nearest enclosing view and is never
// substituted by a temporary table.
func (r *Resolver) viewTables(ref *TableRef, sel *query.Select) []*TableRef {
	top := ref.TopView()
	var result []*TableRef
	for _, candidate := range tableNamesWithAlias(sel) {
		schema := candidate.schema
		if schema == "" {
			schema = ref.Schema
		}
		result = append(result, &TableRef{
			Schema:        schema,
			Name:          candidate.name,
			Alias:         candidate.alias,
			BelongsTo:     top,
			SkipTemporary: true,
		})
	}
	return result
}

type tableName struct {
	schema string
	name   string
	alias  string
}

func tableNames(sel *query.Select) []tableName {
	return tableNamesWithAlias(sel)
}

func tableNamesWithAlias(sel *query.Select) []tableName {
	var result []tableName
	if candidate, ok := asTableName(sel.From.X); ok {
		candidate.alias = sel.From.Alias
		result = append(result, candidate)
	}
	for _, join := range sel.Joins {
		if join == nil {
			continue
		}
		if candidate, ok := asTableName(join.With); ok {
			candidate.alias = join.Alias
			result = append(result, candidate)
		}
	}
	return result
}

func asTableName(n node.Node) (tableName, bool) {
	switch actual := n.(type) {
	case *expr.Ident:
		return tableName{name: actual.Name}, true
	case *expr.Selector:
		return tableName{schema: actual.Name, name: sqlparser.Stringify(actual.X)}, true
	}
	return tableName{}, false
}
