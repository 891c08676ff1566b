// Package create validates view definitions and registers them in the
// catalog; it owns the staged creation pipeline and the drop path.
package create

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/viant/sqlparser"
	"github.com/viant/sqlparser/expr"
	"github.com/viant/sqlparser/node"
	"github.com/viant/sqlparser/query"
	"github.com/viant/viewly/acl"
	"github.com/viant/viewly/catalog"
	"github.com/viant/viewly/checksum"
	"github.com/viant/viewly/table"
	"github.com/viant/viewly/verror"
	"github.com/viant/viewly/view"
)

// Service orchestrates view creation, replacement and drop.
type Service struct {
	catalog     *catalog.Service
	tables      table.Service
	acl         acl.Service
	invalidator catalog.Invalidator
	barrier     catalog.Barrier
	logger      *slog.Logger
}

// New creates a service.
func New(catalogService *catalog.Service, tables table.Service, aclService acl.Service, options ...Option) *Service {
	result := &Service{catalog: catalogService, tables: tables, acl: aclService}
	for _, option := range options {
		option(result)
	}
	if result.invalidator == nil {
		result.invalidator = catalog.NopInvalidator{}
	}
	if result.logger == nil {
		result.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return result
}

// Option customizes a service.
type Option func(*Service)

// WithInvalidator supplies a query cache invalidation sink.
func WithInvalidator(invalidator catalog.Invalidator) Option {
	return func(s *Service) {
		s.invalidator = invalidator
	}
}

// WithBarrier supplies the global read barrier awaited before registration.
func WithBarrier(barrier catalog.Barrier) Option {
	return func(s *Service) {
		s.barrier = barrier
	}
}

// WithLogger supplies a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Request carries one CREATE/ALTER VIEW statement.
type Request struct {
	Schema      string
	Name        string
	Columns     []string
	QueryText   string
	Source      string
	Algorithm   view.Algorithm
	CheckOption view.CheckOption
	Mode        catalog.Mode
	Principal   string
}

// Result reports the registered definition together with advisory warnings.
type Result struct {
	Definition  *view.Definition
	Translation view.Translation
	Warnings    []view.Warning
}

// Create runs the staged validation pipeline and registers the definition.
// Stages short circuit: the first failing stage aborts with nothing stored.
func (s *Service) Create(ctx context.Context, request *Request) (*Result, error) {
	sel, err := s.parse(request)
	if err != nil {
		return nil, err
	}
	if err = s.checkClauses(request, sel); err != nil {
		return nil, err
	}
	if err = s.checkCreatePrivilege(ctx, request); err != nil {
		return nil, err
	}
	if err = s.checkTablePrivileges(ctx, request, sel); err != nil {
		return nil, err
	}
	opened, err := s.openTables(ctx, request, sel)
	if err != nil {
		return nil, err
	}
	translation, err := s.resolveColumns(request, sel, opened)
	if err != nil {
		return nil, err
	}
	if err = s.checkColumnAccess(ctx, request, translation, opened); err != nil {
		return nil, err
	}
	result := &Result{Translation: translation}
	definition, err := s.buildDefinition(request, sel, result)
	if err != nil {
		return nil, err
	}
	if err = s.register(ctx, request, definition); err != nil {
		return nil, err
	}
	result.Definition = definition
	s.logger.Info("view registered", "schema", request.Schema, "view", request.Name, "revision", definition.Revision, "updatable", definition.Updatable)
	return result, nil
}

func (s *Service) parse(request *Request) (*query.Select, error) {
	sel, err := sqlparser.ParseQuery(request.QueryText)
	if err != nil {
		return nil, verror.Wrap(err, verror.KindDefinitionNotAllowed, request.Schema, request.Name)
	}
	if sel == nil || len(sel.List) == 0 {
		return nil, verror.Newf(verror.KindDefinitionNotAllowed, request.Schema, request.Name, "defining text is not a select")
	}
	return sel, nil
}

// checkClauses rejects constructs a stored definition must never carry:
// bound parameters, session variables, SELECT INTO and a derived table in
// the outermost FROM. The text scan runs over the query with string
// literals and comments blanked, a '?' or '@' inside a literal is data.
func (s *Service) checkClauses(request *Request, sel *query.Select) error {
	text := strings.ToLower(stripLiterals(request.QueryText))
	if strings.Contains(text, "?") {
		return verror.Newf(verror.KindDefinitionNotAllowed, request.Schema, request.Name, "defining query contains bound parameters")
	}
	if strings.Contains(text, "@") {
		return verror.Newf(verror.KindDefinitionNotAllowed, request.Schema, request.Name, "defining query references a session variable")
	}
	if strings.Contains(text, " into outfile") || strings.Contains(text, " into dumpfile") {
		return verror.Newf(verror.KindDefinitionNotAllowed, request.Schema, request.Name, "defining query selects into a file")
	}
	if isDerived(sel.From.X) {
		return verror.Newf(verror.KindDefinitionNotAllowed, request.Schema, request.Name, "derived table in the outermost FROM clause")
	}
	for _, join := range sel.Joins {
		if join != nil && isDerived(join.With) {
			return verror.Newf(verror.KindDefinitionNotAllowed, request.Schema, request.Name, "derived table in the outermost FROM clause")
		}
	}
	return nil
}

// stripLiterals blanks quoted literals and comments, leaving everything
// else byte for byte in place.
func stripLiterals(text string) string {
	builder := strings.Builder{}
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '\'', '"', '`':
			for i++; i < len(text) && text[i] != c; i++ {
				if text[i] == '\\' {
					i++
				}
			}
		case '-':
			if i+1 < len(text) && text[i+1] == '-' {
				for ; i < len(text) && text[i] != '\n'; i++ {
				}
			} else {
				builder.WriteByte(c)
			}
		case '/':
			if i+1 < len(text) && text[i+1] == '*' {
				for i += 2; i+1 < len(text) && !(text[i] == '*' && text[i+1] == '/'); i++ {
				}
				i++
			} else {
				builder.WriteByte(c)
			}
		default:
			builder.WriteByte(c)
		}
	}
	return builder.String()
}

func isDerived(n node.Node) bool {
	raw, ok := n.(*expr.Raw)
	if !ok {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(raw.Raw))
	text = strings.TrimSpace(strings.TrimLeft(text, "("))
	return strings.HasPrefix(text, "select")
}

func (s *Service) checkCreatePrivilege(ctx context.Context, request *Request) error {
	required := acl.CreateView
	if request.Mode != catalog.ModeCreate {
		//replacing or altering an existing view needs the right to drop it
		required |= acl.Drop
	}
	object := acl.Object{Schema: request.Schema, Name: request.Name}
	if !s.acl.Check(ctx, request.Principal, required, object) {
		return verror.New(verror.KindPrivilegeDenied, request.Schema, request.Name)
	}
	return nil
}

// checkTablePrivileges requires some view usable privilege on every table of
// the outer FROM clause and SELECT on tables referenced from subqueries only.
func (s *Service) checkTablePrivileges(ctx context.Context, request *Request, sel *query.Select) error {
	outer := map[string]bool{}
	for _, candidate := range fromTables(sel, request.Schema) {
		outer[candidate.schema+"."+candidate.name] = true
		object := acl.Object{Schema: candidate.schema, Name: candidate.name}
		if s.acl.ColumnGrant(ctx, request.Principal, object)&acl.AnyView == 0 {
			return verror.New(verror.KindPrivilegeDenied, candidate.schema, candidate.name)
		}
	}
	for _, inner := range nestedSelects(sel) {
		for _, candidate := range fromTables(inner, request.Schema) {
			if outer[candidate.schema+"."+candidate.name] {
				continue
			}
			object := acl.Object{Schema: candidate.schema, Name: candidate.name}
			if !s.acl.Check(ctx, request.Principal, acl.Select, object) {
				return verror.New(verror.KindPrivilegeDenied, candidate.schema, candidate.name)
			}
		}
	}
	return nil
}

type openedTable struct {
	alias string
	table *table.Table
}

func (s *Service) openTables(ctx context.Context, request *Request, sel *query.Select) ([]*openedTable, error) {
	var result []*openedTable
	for _, candidate := range fromTables(sel, request.Schema) {
		if candidate.schema == request.Schema && candidate.name == request.Name {
			//the identity being created is exempt from name lookup, so a
			//self reference can never resolve
			return nil, verror.New(verror.KindNoSuchTable, candidate.schema, candidate.name)
		}
		opened, err := s.tables.Open(ctx, candidate.schema, candidate.name, table.LockRead)
		if err != nil {
			return nil, err
		}
		if opened.Temporary {
			return nil, verror.New(verror.KindTemporaryTableNotAllowed, candidate.schema, candidate.name)
		}
		result = append(result, &openedTable{alias: candidate.alias, table: opened})
	}
	return result, nil
}

// resolveColumns performs the semantic pass over the output column list:
// star expansion against the opened tables, explicit column name list
// application and duplicate detection.
func (s *Service) resolveColumns(request *Request, sel *query.Select, opened []*openedTable) (view.Translation, error) {
	translation, err := expandStars(request, view.NewTranslation(sel), opened)
	if err != nil {
		return nil, err
	}
	for _, entry := range translation {
		if entry.Column == "" {
			continue
		}
		if owningTable(entry, opened) == nil {
			return nil, verror.Newf(verror.KindDefinitionNotAllowed, request.Schema, request.Name, "unknown column %v", entry.Column)
		}
	}
	if len(request.Columns) > 0 {
		if len(request.Columns) != len(translation) {
			return nil, verror.New(verror.KindColumnCountMismatch, request.Schema, request.Name)
		}
		translation.Rename(request.Columns)
	}
	seen := map[string]bool{}
	for _, entry := range translation {
		key := strings.ToLower(entry.Name)
		if seen[key] {
			return nil, verror.Newf(verror.KindDuplicateFieldName, request.Schema, request.Name, "duplicate column %v", entry.Name)
		}
		seen[key] = true
	}
	return translation, nil
}

// expandStars replaces each star entry with one updatable entry per column
// of the matched tables, keeping the surrounding entries in order.
func expandStars(request *Request, translation view.Translation, opened []*openedTable) (view.Translation, error) {
	var result view.Translation
	for _, entry := range translation {
		if entry.Name != "*" {
			result = append(result, entry)
			continue
		}
		matched := opened
		if entry.Ns != "" {
			matched = nil
			for _, candidate := range opened {
				if candidate.alias == entry.Ns || candidate.table.Name == entry.Ns {
					matched = append(matched, candidate)
				}
			}
		}
		if len(matched) == 0 {
			return nil, verror.Newf(verror.KindDefinitionNotAllowed, request.Schema, request.Name, "unresolvable * in select list")
		}
		for _, candidate := range matched {
			for _, column := range candidate.table.Columns {
				result = append(result, &view.Entry{
					Name:      column.Name,
					Ns:        candidate.alias,
					Column:    column.Name,
					Updatable: true,
				})
			}
		}
	}
	for i, entry := range result {
		entry.Ordinal = i
	}
	return result, nil
}

func owningTable(entry *view.Entry, opened []*openedTable) *table.Table {
	for _, candidate := range opened {
		if entry.Ns != "" && entry.Ns != candidate.alias && entry.Ns != candidate.table.Name {
			continue
		}
		if candidate.table.Column(entry.Column) != nil {
			return candidate.table
		}
	}
	return nil
}

// checkColumnAccess rejects a definition whose output columns would escalate
// the creator's access: the creator needs SELECT on every base column used,
// and the creator's grant on a view column must never exceed the grant on
// the base column it exposes.
func (s *Service) checkColumnAccess(ctx context.Context, request *Request, translation view.Translation, opened []*openedTable) error {
	for _, entry := range translation {
		if entry.Column == "" {
			continue
		}
		owner := owningTable(entry, opened)
		if owner == nil {
			continue
		}
		baseObject := acl.Object{Schema: owner.Schema, Name: owner.Name, Column: entry.Column}
		baseGrant := s.acl.ColumnGrant(ctx, request.Principal, baseObject)
		if baseGrant&acl.Select == 0 {
			return verror.Newf(verror.KindColumnAccessDenied, owner.Schema, owner.Name, "column %v", entry.Column)
		}
		viewObject := acl.Object{Schema: request.Schema, Name: request.Name, Column: entry.Name}
		viewGrant := s.acl.ColumnGrant(ctx, request.Principal, viewObject) & acl.AnyView
		if viewGrant&^baseGrant != 0 {
			return verror.Newf(verror.KindColumnAccessDenied, request.Schema, request.Name, "column %v grants more than base column %v", entry.Name, entry.Column)
		}
	}
	return nil
}

func (s *Service) buildDefinition(request *Request, sel *query.Select, result *Result) (*view.Definition, error) {
	updatable := view.DefinitionUpdatable(sel, request.QueryText, request.Algorithm)
	if request.Algorithm == view.AlgorithmMerge && !view.CanMerge(sel, request.QueryText) {
		result.Warnings = append(result.Warnings, view.Warning{
			Code:    view.WarnMergeDowngrade,
			Message: "requested MERGE algorithm is not applicable, the view will be materialized",
		})
	}
	if request.CheckOption != view.CheckNone && !updatable {
		return nil, verror.New(verror.KindNonUpdatableCheckOption, request.Schema, request.Name)
	}
	source := request.Source
	if source == "" {
		source = "CREATE VIEW " + request.Name + " AS " + request.QueryText
	}
	return &view.Definition{
		Query:       request.QueryText,
		MD5:         checksum.Compute(request.QueryText),
		Updatable:   updatable,
		Algorithm:   request.Algorithm,
		CheckOption: request.CheckOption,
		Source:      source,
	}, nil
}

// register persists the definition under the global read barrier and the
// schema change lock, released in reverse acquisition order. The query cache
// is told about the changed identity unless this is the initial revision.
func (s *Service) register(ctx context.Context, request *Request, definition *view.Definition) error {
	releaseBarrier := func() {}
	if s.barrier != nil {
		var err error
		if releaseBarrier, err = s.barrier.Await(ctx); err != nil {
			return err
		}
	}
	releaseLock := s.catalog.SchemaLock().Lock()
	err := s.catalog.Store(ctx, request.Schema, request.Name, definition, request.Mode)
	releaseLock()
	releaseBarrier()
	if err != nil {
		return err
	}
	if definition.Revision != view.FirstRevision {
		s.invalidator.Invalidate(ctx, request.Schema, request.Name)
	}
	return nil
}

type fromTable struct {
	schema string
	name   string
	alias  string
}

func fromTables(sel *query.Select, defaultSchema string) []*fromTable {
	var result []*fromTable
	if candidate, ok := asFromTable(sel.From.X, defaultSchema); ok {
		candidate.alias = sel.From.Alias
		result = append(result, candidate)
	}
	for _, join := range sel.Joins {
		if join == nil {
			continue
		}
		if candidate, ok := asFromTable(join.With, defaultSchema); ok {
			candidate.alias = join.Alias
			result = append(result, candidate)
		}
	}
	for _, candidate := range result {
		if candidate.alias == "" {
			candidate.alias = candidate.name
		}
	}
	return result
}

func asFromTable(n node.Node, defaultSchema string) (*fromTable, bool) {
	switch actual := n.(type) {
	case *expr.Ident:
		return &fromTable{schema: defaultSchema, name: actual.Name}, true
	case *expr.Selector:
		return &fromTable{schema: actual.Name, name: sqlparser.Stringify(actual.X)}, true
	}
	return nil, false
}

func nestedSelects(sel *query.Select) []*query.Select {
	var result []*query.Select
	sqlparser.Traverse(sel, func(candidate node.Node) bool {
		if inner, ok := candidate.(*query.Select); ok && inner != sel {
			result = append(result, inner)
		}
		return true
	})
	return result
}
