package storage

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		kind    string
		dsn     string
		wantErr bool
	}{
		{"", "", false},
		{"memory", "", false},
		{"sqlite", "arbor.db", false},
		{"mysql", "arbor:secret@tcp(localhost:3306)/arbor", false},
		{"mysql", "not a dsn", true},
		{"unknown", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.dsn, func(t *testing.T) {
			store, err := NewStore(tt.kind, tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if store != nil {
					t.Fatal("expected nil store on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("new store: %v", err)
			}
			if store == nil {
				t.Fatal("expected non-nil store")
			}
		})
	}
}

func TestNewMySQLStoreForcesParseTime(t *testing.T) {
	store, err := NewMySQLStore("arbor:secret@tcp(db:3306)/arbor")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := mysql.ParseDSN(store.dsn)
	if err != nil {
		t.Fatalf("reparse dsn: %v", err)
	}
	if !cfg.ParseTime || cfg.DBName != "arbor" || cfg.Addr != "db:3306" {
		t.Fatalf("unexpected dsn config: %+v", cfg)
	}
}

func TestTranslateMySQLError(t *testing.T) {
	err := translateMySQLError(&mysql.MySQLError{Number: mysqlErrPacketTooLarge, Message: "too big"})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("got %v, want ErrPayloadTooLarge", err)
	}
	other := &mysql.MySQLError{Number: 1062, Message: "dup"}
	if translateMySQLError(other) != other {
		t.Fatal("other errors must pass through")
	}
}

func TestCloseIfSupported(t *testing.T) {
	if err := CloseIfSupported(NewMemoryStore()); err != nil {
		t.Fatal(err)
	}
	if err := CloseIfSupported(NewSQLiteStore("unused.db")); err != nil {
		t.Fatal(err)
	}
}
