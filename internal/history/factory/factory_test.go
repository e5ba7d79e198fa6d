package factory

import (
	"path/filepath"
	"testing"

	"github.com/loykin/solo/internal/history"
	"github.com/loykin/solo/internal/history/opensearch"
	"github.com/loykin/solo/internal/history/sqlite"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		want    Target
		wantErr bool
	}{
		{"empty", "   ", Target{}, true},
		{"unknown scheme", "invalid://test", Target{}, true},
		{"clickhouse with table", "clickhouse://ch:9000?table=events", Target{Kind: KindClickHouse, Addr: "ch:9000", Table: "events"}, false},
		{"clickhouse defaults", "clickhouse://", Target{Kind: KindClickHouse, Addr: defaultClickHouseAddr, Table: defaultClickHouseTable}, false},
		{"opensearch", "opensearch://os:9200/logs", Target{Kind: KindOpenSearch, BaseURL: "http://os:9200", Index: "logs"}, false},
		{"opensearch tls default index", "opensearch://os:9200?tls=true", Target{Kind: KindOpenSearch, BaseURL: "https://os:9200", Index: defaultOpenSearchIndex}, false},
		{"elasticsearch", "elasticsearch://es:9200/events", Target{Kind: KindOpenSearch, BaseURL: "http://es:9200", Index: "events"}, false},
		{"opensearch without host", "opensearch:///idx", Target{}, true},
		{"postgres", "postgres://u:p@db:5432/x?sslmode=disable", Target{Kind: KindPostgres, DSN: "postgres://u:p@db:5432/x?sslmode=disable"}, false},
		{"postgresql", "postgresql://db/x", Target{Kind: KindPostgres, DSN: "postgresql://db/x"}, false},
		{"sqlite prefix", "sqlite:///tmp/a.db", Target{Kind: KindSQLite, DSN: "sqlite:///tmp/a.db"}, false},
		{"bare path", "/var/lib/solo/history.db", Target{Kind: KindSQLite, DSN: "/var/lib/solo/history.db"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.dsn, got, tt.want)
			}
		})
	}
}

func TestNewSinkFromDSN_SQLite(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "h.db")
	sink, err := NewSinkFromDSN(dsn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = history.Close(sink) }()
	if _, ok := sink.(*sqlite.Sink); !ok {
		t.Fatalf("expected *sqlite.Sink, got %T", sink)
	}
}

func TestNewSinkFromDSN_OpenSearch(t *testing.T) {
	sink, err := NewSinkFromDSN("opensearch://localhost:9200/idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sink.(*opensearch.Sink); !ok {
		t.Fatalf("expected *opensearch.Sink, got %T", sink)
	}
	if err := history.Close(sink); err != nil {
		t.Fatalf("close of non-closer must be nil: %v", err)
	}
}

func TestNewSinkFromDSN_Invalid(t *testing.T) {
	if _, err := NewSinkFromDSN("ftp://nope"); err == nil {
		t.Fatal("expected error")
	}
}
