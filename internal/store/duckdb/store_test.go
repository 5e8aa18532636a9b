package duckdb

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/parquet-go/parquet-go"

	"github.com/huggingduck/huggingduck/internal/store"
)

type passengerRow struct {
	PassengerID int64   `parquet:"passenger_id"`
	Name        string  `parquet:"name"`
	Fare        float64 `parquet:"fare"`
}

func TestCreateTableFromCSVInfersSchema(t *testing.T) {
	s := openTestStore(t)
	path := writeCSV(t, "passenger_id,name,age,fare,survived\n1,Braund,22,7.25,false\n2,Cumings,38,71.2833,true\n3,Heikkinen,26,7.925,true\n")

	if err := s.CreateTable(context.Background(), "original", store.FormatCSV, path); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}

	count, err := s.RowCount(context.Background(), "original")
	if err != nil {
		t.Fatalf("RowCount() error = %v", err)
	}
	if count != 3 {
		t.Fatalf("RowCount() = %d, want 3", count)
	}

	columns, err := s.Columns(context.Background(), "original")
	if err != nil {
		t.Fatalf("Columns() error = %v", err)
	}
	want := map[string]string{
		"passenger_id": "BIGINT",
		"name":         "VARCHAR",
		"age":          "BIGINT",
		"fare":         "DOUBLE",
		"survived":     "BOOLEAN",
	}
	if len(columns) != len(want) {
		t.Fatalf("Columns() = %#v", columns)
	}
	for _, column := range columns {
		if want[column.Name] != column.Type {
			t.Fatalf("column %q type = %q, want %q", column.Name, column.Type, want[column.Name])
		}
	}
	if columns[0].Name != "passenger_id" || columns[0].Position != 1 {
		t.Fatalf("first column = %#v", columns[0])
	}
}

func TestCreateTableReplacesExistingTable(t *testing.T) {
	s := openTestStore(t)
	first := writeCSV(t, "a\n1\n2\n")
	second := writeCSV(t, "a\n1\n")

	for _, path := range []string{first, second} {
		if err := s.CreateTable(context.Background(), "t", store.FormatCSV, path); err != nil {
			t.Fatalf("CreateTable() error = %v", err)
		}
	}
	count, err := s.RowCount(context.Background(), "t")
	if err != nil {
		t.Fatalf("RowCount() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("RowCount() = %d, want 1", count)
	}
	tables, err := s.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 1 || tables[0] != "t" {
		t.Fatalf("ListTables() = %v", tables)
	}
}

func TestCreateTableRejectsRaggedCSVAndKeepsPreviousTable(t *testing.T) {
	s := openTestStore(t)
	good := writeCSV(t, "a,b\n1,2\n")
	if err := s.CreateTable(context.Background(), "t", store.FormatCSV, good); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}

	ragged := writeCSV(t, "a,b\n1,2\n3,4,5,6\n7,8\n")
	if err := s.CreateTable(context.Background(), "t", store.FormatCSV, ragged); err == nil {
		t.Fatal("expected ragged csv error")
	}
	columns, err := s.Columns(context.Background(), "t")
	if err != nil {
		t.Fatalf("Columns() error = %v", err)
	}
	if len(columns) != 2 {
		t.Fatalf("Columns() = %#v", columns)
	}
	count, err := s.RowCount(context.Background(), "t")
	if err != nil {
		t.Fatalf("RowCount() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("RowCount() = %d, want 1", count)
	}
}

func TestCreateTableFromParquet(t *testing.T) {
	s := openTestStore(t)
	data, err := buildParquet([]passengerRow{{PassengerID: 1, Name: "a", Fare: 1.5}, {PassengerID: 2, Name: "b", Fare: 2.5}})
	if err != nil {
		t.Fatalf("buildParquet() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "passengers.parquet")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := s.CreateTable(context.Background(), "passengers", store.FormatParquet, path); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	result, err := s.Query(context.Background(), "SELECT SUM(fare) AS total FROM passengers;")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0][0] != float64(4) {
		t.Fatalf("rows = %#v", result.Rows)
	}
	if result.Columns[0].Name != "total" || result.Columns[0].Type != "DOUBLE" {
		t.Fatalf("columns = %#v", result.Columns)
	}
}

func TestCreateTableRejectsUnknownFormat(t *testing.T) {
	s := openTestStore(t)
	if err := s.CreateTable(context.Background(), "t", store.Format("xlsx"), "x.xlsx"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestQueryUnknownTableReturnsMissingTableError(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Query(context.Background(), "SELECT * FROM nope")
	var missing *store.MissingTableError
	if !errors.As(err, &missing) {
		t.Fatalf("Query() error = %v, want MissingTableError", err)
	}
	if missing.Table != "nope" {
		t.Fatalf("Table = %q", missing.Table)
	}
}

func TestColumnsUnknownTableReturnsMissingTableError(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Columns(context.Background(), "nope")
	var missing *store.MissingTableError
	if !errors.As(err, &missing) {
		t.Fatalf("Columns() error = %v, want MissingTableError", err)
	}
}

func TestQueryRejectsEmptySQL(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Query(context.Background(), " ;; "); err == nil {
		t.Fatal("expected sql required error")
	}
}

func TestQueryMapsDriverErrorsWithSQLMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM ghosts`)).
		WillReturnError(errors.New("Catalog Error: Table with name ghosts does not exist!"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELEC 1`)).
		WillReturnError(errors.New(`Parser Error: syntax error at or near "SELEC"`))
	mock.ExpectRollback()

	s := NewWithDB(db)
	_, err = s.Query(context.Background(), "SELECT * FROM ghosts;")
	var missing *store.MissingTableError
	if !errors.As(err, &missing) || missing.Table != "ghosts" {
		t.Fatalf("Query() error = %v, want MissingTableError(ghosts)", err)
	}

	_, err = s.Query(context.Background(), "SELEC 1")
	if err == nil || errors.As(err, &missing) {
		t.Fatalf("Query() error = %v, want plain parser error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock expectations: %v", err)
	}
}

func TestRowCountWithSQLMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "weird ""name"""`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(891)))

	count, err := NewWithDB(db).RowCount(context.Background(), `weird "name"`)
	if err != nil {
		t.Fatalf("RowCount() error = %v", err)
	}
	if count != 891 {
		t.Fatalf("RowCount() = %d", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock expectations: %v", err)
	}
}

func TestQueryRejectsStatementLists(t *testing.T) {
	s := openTestStore(t)
	path := writeCSV(t, "a\n1\n2\n")
	if err := s.CreateTable(context.Background(), "t", store.FormatCSV, path); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}

	if _, err := s.Query(context.Background(), "SELECT 1; DROP TABLE t"); !errors.Is(err, store.ErrMultipleStatements) {
		t.Fatalf("Query() error = %v, want ErrMultipleStatements", err)
	}
	tables, err := s.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 1 || tables[0] != "t" {
		t.Fatalf("ListTables() = %v", tables)
	}
}

func TestQueryDiscardsWrites(t *testing.T) {
	s := openTestStore(t)
	path := writeCSV(t, "a\n1\n2\n")
	if err := s.CreateTable(context.Background(), "t", store.FormatCSV, path); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}

	for _, statement := range []string{"DELETE FROM t", "DROP TABLE t", "INSERT INTO t VALUES (3)"} {
		if _, err := s.Query(context.Background(), statement); err != nil {
			t.Fatalf("Query(%q) error = %v", statement, err)
		}
	}
	count, err := s.RowCount(context.Background(), "t")
	if err != nil {
		t.Fatalf("RowCount() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("RowCount() = %d, want 2", count)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "*.csv")
	if err != nil {
		t.Fatalf("CreateTemp() error = %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return f.Name()
}

func buildParquet(rows []passengerRow) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[passengerRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
