/*
Copyright 2024 The ModelFabric Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package backend

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
)

// Error strings.
const (
	errDatabaseSpec    = "storage spec has no database configuration"
	errDatabaseOpen    = "cannot open database connection"
	errDatabasePing    = "cannot reach database"
	errNativeModel     = "database storage cannot hold a native model"
	errClonedDatabase  = "database storage cannot be a clone target"
	errNoPrimary       = "model has no usable primary field"
	errCreateTable     = "cannot create table"
	errDescribeTable   = "cannot describe table"
	errAlterTable      = "cannot alter table"
	errDropTable       = "cannot drop table"
	errColumnType      = "existing column is incompatible with model field"
	errQueryRow        = "cannot query row"
	errQueryKeys       = "cannot query keys"
	errQueryUsage      = "cannot query storage usage"
	errUnknownField    = "model field has unknown type"
	errAggregationType = "aggregated field type mismatch"
)

// MySQL server error numbers the adapter classifies specially.
const (
	mysqlErrAccessDenied   = 1044
	mysqlErrBadCredentials = 1045
	mysqlErrUnknownDB      = 1049
	mysqlErrTableExists    = 1050
	mysqlErrCommandDenied  = 1142
	mysqlErrNoSuchTable    = 1146
)

// A DatabaseOpenFn opens a connection pool for the supplied DSN.
type DatabaseOpenFn func(ctx context.Context, dsn string) (*sql.DB, error)

// A DatabaseBackend binds models to tables of a MySQL-compatible database.
// Tables are named after the model and migrated additively when the model's
// schema grows.
type DatabaseBackend struct {
	creds CredentialReader
	open  DatabaseOpenFn
}

// A DatabaseBackendOption configures a DatabaseBackend.
type DatabaseBackendOption func(*DatabaseBackend)

// WithDatabaseOpenFn specifies how the backend opens connections. Tests use
// this to supply fakes.
func WithDatabaseOpenFn(fn DatabaseOpenFn) DatabaseBackendOption {
	return func(b *DatabaseBackend) { b.open = fn }
}

// NewDatabaseBackend returns a Backend that stores model data in database
// tables, resolving DSNs with the supplied reader.
func NewDatabaseBackend(creds CredentialReader, o ...DatabaseBackendOption) *DatabaseBackend {
	b := &DatabaseBackend{creds: creds, open: openMySQL}
	for _, fn := range o {
		fn(b)
	}
	return b
}

func openMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, NewError(KindPermanent, errors.Wrap(err, errDatabaseOpen))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, NewError(classifyDatabase(err), errors.Wrap(err, errDatabasePing))
	}
	return db, nil
}

func (b *DatabaseBackend) connect(ctx context.Context, bd Binding, spec *v1alpha1.DatabaseStorageSpec) (*sql.DB, error) {
	c, err := b.creds.Credentials(ctx, bd.Namespace, spec.ConnectionSecretRef.Name, SecretKeyDSN)
	if err != nil {
		return nil, err
	}
	return b.open(ctx, c[SecretKeyDSN])
}

// Bind ensures a table matching the binding's model schema exists, creating
// it or growing it column by column. A column whose type contradicts the
// model is a conflict the fabric will not repair.
func (b *DatabaseBackend) Bind(ctx context.Context, bd Binding) error {
	if bd.Target.Database == nil {
		return Errorf(KindConflict, errDatabaseSpec)
	}
	if bd.Model.IsNative() {
		return Errorf(KindConflict, errNativeModel)
	}
	if bd.Source != nil {
		return Errorf(KindConflict, errClonedDatabase)
	}

	db, err := b.connect(ctx, bd, bd.Target.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	cols, err := tableColumns(ctx, db, bd.Target.Database.Database, bd.ModelName)
	if err != nil {
		return err
	}
	if cols == nil {
		ddl, err := createTableDDL(bd.ModelName, bd.Model.Fields)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			var me *mysql.MySQLError
			if errors.As(err, &me) && me.Number == mysqlErrTableExists {
				return nil
			}
			return NewError(classifyDatabase(err), errors.Wrap(err, errCreateTable))
		}
		return nil
	}

	stmts, err := migrateTableDDL(bd.ModelName, bd.Model.Fields, cols)
	if err != nil {
		return err
	}
	for _, ddl := range stmts {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return NewError(classifyDatabase(err), errors.Wrap(err, errAlterTable))
		}
	}
	return nil
}

// Unbind drops the model's table under the Delete policy and leaves it in
// place under Retain. A table that is already gone is not an error.
func (b *DatabaseBackend) Unbind(ctx context.Context, bd Binding, policy v1alpha1.DeletionPolicy) error {
	if bd.Target.Database == nil {
		return Errorf(KindConflict, errDatabaseSpec)
	}
	if policy == v1alpha1.DeletionRetain {
		return nil
	}

	db, err := b.connect(ctx, bd, bd.Target.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(bd.ModelName)); err != nil {
		return NewError(classifyDatabase(err), errors.Wrap(err, errDropTable))
	}
	return nil
}

// Get reads one row by the model's primary field and returns it as JSON.
func (b *DatabaseBackend) Get(ctx context.Context, bd Binding, key string) ([]byte, error) {
	if bd.Target.Database == nil {
		return nil, Errorf(KindConflict, errDatabaseSpec)
	}
	primary := bd.Model.PrimaryField()
	if primary == nil {
		return nil, Errorf(KindConflict, errNoPrimary)
	}

	db, err := b.connect(ctx, bd, bd.Target.Database)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	q := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", quoteIdent(bd.ModelName), quoteIdent(primary.Name))
	rows, err := db.QueryContext(ctx, q, key)
	if err != nil {
		return nil, NewError(classifyDatabase(err), errors.Wrap(err, errQueryRow))
	}
	defer rows.Close() //nolint:errcheck

	names, err := rows.Columns()
	if err != nil {
		return nil, NewError(KindTransient, errors.Wrap(err, errQueryRow))
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, NewError(classifyDatabase(err), errors.Wrap(err, errQueryRow))
		}
		return nil, Errorf(KindNotFound, "no row with key %q", key)
	}

	raw := make([]sql.RawBytes, len(names))
	ptrs := make([]any, len(names))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, NewError(KindTransient, errors.Wrap(err, errQueryRow))
	}

	row := make(map[string]any, len(names))
	for i, n := range names {
		if raw[i] == nil {
			row[n] = nil
			continue
		}
		row[n] = string(raw[i])
	}
	data, err := json.Marshal(row)
	return data, NewError(KindPermanent, errors.Wrap(err, errQueryRow))
}

// List enumerates the primary key values held in the model's table.
func (b *DatabaseBackend) List(ctx context.Context, bd Binding) ([]string, error) {
	if bd.Target.Database == nil {
		return nil, Errorf(KindConflict, errDatabaseSpec)
	}
	primary := bd.Model.PrimaryField()
	if primary == nil {
		return nil, Errorf(KindConflict, errNoPrimary)
	}

	db, err := b.connect(ctx, bd, bd.Target.Database)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	q := fmt.Sprintf("SELECT %s FROM %s", quoteIdent(primary.Name), quoteIdent(bd.ModelName))
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, NewError(classifyDatabase(err), errors.Wrap(err, errQueryKeys))
	}
	defer rows.Close() //nolint:errcheck

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, NewError(KindTransient, errors.Wrap(err, errQueryKeys))
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, NewError(classifyDatabase(err), errors.Wrap(err, errQueryKeys))
	}
	return keys, nil
}

// Capacity reports the declared capacity less the schema's on-disk size as
// recorded by the database's own statistics. Storages without a declared
// capacity cannot report.
func (b *DatabaseBackend) Capacity(ctx context.Context, namespace string, storage *v1alpha1.ModelStorageSpec) (*Capacity, error) {
	if storage.Database == nil {
		return nil, Errorf(KindConflict, errDatabaseSpec)
	}
	declared := storage.DeclaredCapacity()
	if declared == nil {
		return nil, nil
	}

	c, err := b.creds.Credentials(ctx, namespace, storage.Database.ConnectionSecretRef.Name, SecretKeyDSN)
	if err != nil {
		return nil, err
	}
	db, err := b.open(ctx, c[SecretKeyDSN])
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	var used sql.NullInt64
	q := "SELECT SUM(data_length + index_length) FROM information_schema.tables WHERE table_schema = ?"
	if err := db.QueryRowContext(ctx, q, storage.Database.Database).Scan(&used); err != nil {
		return nil, NewError(classifyDatabase(err), errors.Wrap(err, errQueryUsage))
	}

	available := declared.Value() - used.Int64
	if available < 0 {
		available = 0
	}
	return &Capacity{AvailableBytes: available, UsedBytes: used.Int64}, nil
}

// tableColumns returns the column name to type mapping of the named table, or
// nil when the table does not exist.
func tableColumns(ctx context.Context, db *sql.DB, schema, table string) (map[string]string, error) {
	q := "SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = ? AND table_name = ?"
	rows, err := db.QueryContext(ctx, q, schema, table)
	if err != nil {
		return nil, NewError(classifyDatabase(err), errors.Wrap(err, errDescribeTable))
	}
	defer rows.Close() //nolint:errcheck

	var cols map[string]string
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, NewError(KindTransient, errors.Wrap(err, errDescribeTable))
		}
		if cols == nil {
			cols = map[string]string{}
		}
		cols[strings.ToLower(name)] = strings.ToLower(typ)
	}
	if err := rows.Err(); err != nil {
		return nil, NewError(classifyDatabase(err), errors.Wrap(err, errDescribeTable))
	}
	return cols, nil
}

// createTableDDL renders the CREATE TABLE statement for a model's schema.
func createTableDDL(table string, fields []v1alpha1.FieldSpec) (string, error) {
	defs := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		col, err := columnType(f.Type)
		if err != nil {
			return "", err
		}
		def := quoteIdent(f.Name) + " " + col
		if f.Required || f.Primary {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if p := primaryOf(fields); p != nil {
		defs = append(defs, "PRIMARY KEY ("+quoteIdent(p.Name)+")")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", ")), nil
}

// migrateTableDDL renders the ALTER TABLE statements that grow an existing
// table to the model's schema. Columns are only ever added. A field whose
// existing column has a different type yields a Conflict.
func migrateTableDDL(table string, fields []v1alpha1.FieldSpec, existing map[string]string) ([]string, error) {
	var stmts []string
	for _, f := range fields {
		col, err := columnType(f.Type)
		if err != nil {
			return nil, err
		}
		have, ok := existing[strings.ToLower(f.Name)]
		if !ok {
			// Added columns are always nullable so existing rows stay
			// valid.
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(table), quoteIdent(f.Name), col))
			continue
		}
		if have != dataTypeOf(col) {
			return nil, Errorf(KindConflict, "%s: column %q is %s, model wants %s", errColumnType, f.Name, have, col)
		}
	}
	return stmts, nil
}

// columnType maps a model field type onto its database column type.
func columnType(t v1alpha1.FieldType) (string, error) {
	switch t {
	case v1alpha1.FieldTypeString:
		return "VARCHAR(255)", nil
	case v1alpha1.FieldTypeInteger:
		return "BIGINT", nil
	case v1alpha1.FieldTypeFloat:
		return "DOUBLE", nil
	case v1alpha1.FieldTypeBoolean:
		return "TINYINT(1)", nil
	case v1alpha1.FieldTypeBytes:
		return "LONGBLOB", nil
	case v1alpha1.FieldTypeTimestamp:
		return "DATETIME(6)", nil
	}
	return "", Errorf(KindConflict, "%s: %q", errUnknownField, t)
}

// dataTypeOf reduces a column definition to the bare type name
// information_schema reports, e.g. VARCHAR(255) to varchar.
func dataTypeOf(col string) string {
	if i := strings.IndexByte(col, '('); i >= 0 {
		col = col[:i]
	}
	return strings.ToLower(col)
}

func primaryOf(fields []v1alpha1.FieldSpec) *v1alpha1.FieldSpec {
	for i := range fields {
		if fields[i].Primary {
			return &fields[i]
		}
	}
	if len(fields) > 0 {
		return &fields[0]
	}
	return nil
}


// quoteIdent backtick quotes an identifier for MySQL.
func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// classifyDatabase maps database failures onto the backend error taxonomy.
func classifyDatabase(err error) Kind {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrAccessDenied, mysqlErrBadCredentials, mysqlErrCommandDenied:
			return KindUnauthorized
		case mysqlErrUnknownDB, mysqlErrNoSuchTable:
			return KindNotFound
		}
		return KindPermanent
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	// Errors without a server response are most likely connection failures.
	return KindTransient
}
