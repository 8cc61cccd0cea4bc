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
	"database/sql/driver"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
)

func TestCreateTableDDL(t *testing.T) {
	cases := map[string]struct {
		reason  string
		table   string
		fields  []v1alpha1.FieldSpec
		want    string
		wantErr bool
	}{
		"PrimaryAndRequired": {
			reason: "The marked primary field becomes the primary key and required fields are NOT NULL.",
			table:  "readings",
			fields: []v1alpha1.FieldSpec{
				{Name: "id", Type: v1alpha1.FieldTypeString, Primary: true},
				{Name: "value", Type: v1alpha1.FieldTypeFloat, Required: true},
				{Name: "at", Type: v1alpha1.FieldTypeTimestamp},
			},
			want: "CREATE TABLE `readings` (`id` VARCHAR(255) NOT NULL, `value` DOUBLE NOT NULL, `at` DATETIME(6), PRIMARY KEY (`id`))",
		},
		"ImplicitPrimary": {
			reason: "Without a marked primary field the first field keys the table.",
			table:  "events",
			fields: []v1alpha1.FieldSpec{
				{Name: "name", Type: v1alpha1.FieldTypeString},
				{Name: "count", Type: v1alpha1.FieldTypeInteger},
			},
			want: "CREATE TABLE `events` (`name` VARCHAR(255), `count` BIGINT, PRIMARY KEY (`name`))",
		},
		"UnknownType": {
			reason:  "A field with an unknown type cannot be rendered.",
			table:   "events",
			fields:  []v1alpha1.FieldSpec{{Name: "name", Type: "decimal"}},
			wantErr: true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := createTableDDL(tc.table, tc.fields)
			if tc.wantErr {
				if !IsConflict(err) {
					t.Errorf("\n%s\ncreateTableDDL(...): want Conflict, got %v", tc.reason, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("\n%s\ncreateTableDDL(...): %v", tc.reason, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("\n%s\ncreateTableDDL(...): -want, +got:\n%s", tc.reason, diff)
			}
		})
	}
}

func TestMigrateTableDDL(t *testing.T) {
	fields := []v1alpha1.FieldSpec{
		{Name: "id", Type: v1alpha1.FieldTypeString, Primary: true},
		{Name: "value", Type: v1alpha1.FieldTypeFloat},
	}

	cases := map[string]struct {
		reason   string
		fields   []v1alpha1.FieldSpec
		existing map[string]string
		want     []string
		wantKind Kind
	}{
		"NothingToDo": {
			reason:   "A table already matching the schema needs no statements.",
			fields:   fields,
			existing: map[string]string{"id": "varchar", "value": "double"},
			want:     nil,
		},
		"AddColumn": {
			reason:   "New model fields become added, nullable columns.",
			fields:   fields,
			existing: map[string]string{"id": "varchar"},
			want:     []string{"ALTER TABLE `readings` ADD COLUMN `value` DOUBLE"},
		},
		"TypeConflict": {
			reason:   "A field whose column already has a different type is a conflict.",
			fields:   fields,
			existing: map[string]string{"id": "varchar", "value": "bigint"},
			wantKind: KindConflict,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := migrateTableDDL("readings", tc.fields, tc.existing)
			if tc.wantKind != "" {
				if KindOf(err) != tc.wantKind {
					t.Errorf("\n%s\nmigrateTableDDL(...): want %s, got %v", tc.reason, tc.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("\n%s\nmigrateTableDDL(...): %v", tc.reason, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("\n%s\nmigrateTableDDL(...): -want, +got:\n%s", tc.reason, diff)
			}
		})
	}
}

func TestClassifyDatabase(t *testing.T) {
	cases := map[string]struct {
		reason string
		err    error
		want   Kind
	}{
		"BadCredentials": {
			reason: "A rejected login is Unauthorized.",
			err:    &mysql.MySQLError{Number: mysqlErrBadCredentials, Message: "access denied"},
			want:   KindUnauthorized,
		},
		"NoSuchTable": {
			reason: "A missing table is NotFound.",
			err:    &mysql.MySQLError{Number: mysqlErrNoSuchTable, Message: "no such table"},
			want:   KindNotFound,
		},
		"OtherServerError": {
			reason: "Any other server error is Permanent.",
			err:    &mysql.MySQLError{Number: 1064, Message: "syntax"},
			want:   KindPermanent,
		},
		"BadConn": {
			reason: "A dropped connection is Transient.",
			err:    errors.Wrap(driver.ErrBadConn, "exec"),
			want:   KindTransient,
		},
		"Network": {
			reason: "Errors without a server response are Transient.",
			err:    errors.New("dial tcp: connection refused"),
			want:   KindTransient,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := classifyDatabase(tc.err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("\n%s\nclassifyDatabase(...): -want, +got:\n%s", tc.reason, diff)
			}
		})
	}
}

func TestDatabaseBindRejects(t *testing.T) {
	creds := CredentialReaderFn(func(_ context.Context, _, _ string, _ ...string) (map[string]string, error) {
		t.Error("credentials must not be read for conflicting bindings")
		return nil, nil
	})
	b := NewDatabaseBackend(creds)

	target := &v1alpha1.ModelStorageSpec{Database: &v1alpha1.DatabaseStorageSpec{Database: "fabric"}}
	fields := &v1alpha1.ModelSpec{Fields: []v1alpha1.FieldSpec{{Name: "id", Type: v1alpha1.FieldTypeString}}}

	cases := map[string]struct {
		reason string
		b      Binding
	}{
		"NativeModel": {
			reason: "A native model cannot live in a database table.",
			b: Binding{
				ModelName: "devices",
				Model:     &v1alpha1.ModelSpec{CRDRef: &v1alpha1.NativeSchemaRef{APIGroup: "things.io", Version: "v1", Kind: "Device"}},
				Target:    target,
			},
		},
		"ClonedBinding": {
			reason: "A database storage cannot receive replicated data.",
			b: Binding{
				ModelName: "readings",
				Model:     fields,
				Source:    &v1alpha1.ModelStorageSpec{Object: &v1alpha1.ObjectStorageSpec{Endpoint: "http://minio:9000"}},
				Target:    target,
			},
		},
		"WrongSpec": {
			reason: "A storage spec without database configuration is a conflict.",
			b: Binding{
				ModelName: "readings",
				Model:     fields,
				Target:    &v1alpha1.ModelStorageSpec{Object: &v1alpha1.ObjectStorageSpec{Endpoint: "http://minio:9000"}},
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if err := b.Bind(context.Background(), tc.b); !IsConflict(err) {
				t.Errorf("\n%s\nBind(...): want Conflict, got %v", tc.reason, err)
			}
		})
	}
}
