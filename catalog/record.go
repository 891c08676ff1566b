package catalog

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/viant/viewly/verror"
	"github.com/viant/viewly/view"
)

// TypeMarker opens every well formed view record; the catalog kind sniffer
// classifies files by these exact ten bytes without a full parse.
const TypeMarker = "TYPE=VIEW\n"

const timestampLayout = "2006-01-02 15:04:05"

// Persisted field names, order significant; parse relies on this order and
// it must never change within a format version.
const (
	fieldQuery       = "query"
	fieldMD5         = "md5"
	fieldUpdatable   = "updatable"
	fieldAlgorithm   = "algorithm"
	fieldCheckOption = "with_check_option"
	fieldRevision    = "revision"
	fieldTimestamp   = "timestamp"
	fieldVersion     = "create-version"
	fieldSource      = "source"
)

// Encode renders a definition as a versioned record.
func Encode(definition *view.Definition) []byte {
	builder := &strings.Builder{}
	builder.WriteString(TypeMarker)
	writeField(builder, fieldQuery, escape(definition.Query))
	writeField(builder, fieldMD5, definition.MD5)
	writeField(builder, fieldUpdatable, formatBool(definition.Updatable))
	writeField(builder, fieldAlgorithm, strconv.Itoa(int(definition.Algorithm)))
	writeField(builder, fieldCheckOption, strconv.Itoa(int(definition.CheckOption)))
	writeField(builder, fieldRevision, strconv.FormatUint(definition.Revision, 10))
	writeField(builder, fieldTimestamp, definition.Timestamp.UTC().Format(timestampLayout))
	writeField(builder, fieldVersion, strconv.Itoa(definition.FileVersion))
	writeField(builder, fieldSource, escape(definition.Source))
	return []byte(builder.String())
}

// Decode parses a record of any format version this codec has ever written.
func Decode(data []byte, schema, name string) (*view.Definition, error) {
	text := string(data)
	if !strings.HasPrefix(text, TypeMarker) {
		return nil, verror.New(verror.KindTypeMismatch, schema, name)
	}
	result := &view.Definition{}
	fields, err := parseFields(text[len(TypeMarker):])
	if err != nil {
		return nil, verror.Wrap(err, verror.KindViewCorrupt, schema, name)
	}
	version := 1
	if value, ok := fields[fieldVersion]; ok {
		if version, err = strconv.Atoi(value); err != nil {
			return nil, verror.Wrap(err, verror.KindViewCorrupt, schema, name)
		}
	}
	if version < 1 || version > view.FileVersion {
		return nil, verror.Newf(verror.KindViewCorrupt, schema, name, "unsupported record version: %v", version)
	}
	result.FileVersion = version
	for _, required := range []string{fieldQuery, fieldMD5, fieldUpdatable, fieldAlgorithm, fieldCheckOption, fieldRevision, fieldTimestamp, fieldSource} {
		if _, ok := fields[required]; !ok {
			return nil, verror.Newf(verror.KindViewCorrupt, schema, name, "missing field: %v", required)
		}
	}
	result.Query = unescape(fields[fieldQuery])
	result.MD5 = fields[fieldMD5]
	result.Updatable = fields[fieldUpdatable] == "1"
	if result.Algorithm, err = view.ParseAlgorithm(fields[fieldAlgorithm]); err != nil {
		return nil, verror.Wrap(err, verror.KindViewCorrupt, schema, name)
	}
	if result.CheckOption, err = view.ParseCheckOption(fields[fieldCheckOption]); err != nil {
		return nil, verror.Wrap(err, verror.KindViewCorrupt, schema, name)
	}
	if result.Revision, err = strconv.ParseUint(fields[fieldRevision], 10, 64); err != nil {
		return nil, verror.Wrap(err, verror.KindViewCorrupt, schema, name)
	}
	if result.Timestamp, err = time.Parse(timestampLayout, fields[fieldTimestamp]); err != nil {
		return nil, verror.Wrap(err, verror.KindViewCorrupt, schema, name)
	}
	result.Timestamp = result.Timestamp.UTC()
	result.Source = unescape(fields[fieldSource])
	return result, nil
}

// PeekRevision extracts only the revision field; replace-on-write uses it to
// increment the counter without a full reload, tolerating partial legacy
// records missing other fields.
func PeekRevision(data []byte) (uint64, bool) {
	text := string(data)
	if !strings.HasPrefix(text, TypeMarker) {
		return 0, false
	}
	for _, line := range strings.Split(text[len(TypeMarker):], "\n") {
		if value, ok := strings.CutPrefix(line, fieldRevision+"="); ok {
			revision, err := strconv.ParseUint(value, 10, 64)
			return revision, err == nil
		}
	}
	return 0, false
}

func parseFields(body string) (map[string]string, error) {
	result := map[string]string{}
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, errors.Errorf("malformed record line: %q", line)
		}
		result[name] = value
	}
	return result, nil
}

func writeField(builder *strings.Builder, name, value string) {
	builder.WriteString(name)
	builder.WriteByte('=')
	builder.WriteString(value)
	builder.WriteByte('\n')
}

func formatBool(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

func escape(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, "\n", `\n`)
}

func unescape(value string) string {
	builder := &strings.Builder{}
	for i := 0; i < len(value); i++ {
		if value[i] != '\\' || i+1 == len(value) {
			builder.WriteByte(value[i])
			continue
		}
		i++
		switch value[i] {
		case 'n':
			builder.WriteByte('\n')
		default:
			builder.WriteByte(value[i])
		}
	}
	return builder.String()
}
