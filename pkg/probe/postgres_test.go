package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

// statlessPool wraps the mock to return no pool statistics, which only
// a live pool can produce.
type statlessPool struct {
	pgxmock.PgxPoolIface
}

func (statlessPool) Stat() *pgxpool.Stat { return nil }

func newMockProber(t *testing.T) (pgxmock.PgxPoolIface, *PostgresProber) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mock.Close)

	prober := NewPostgresProber(statlessPool{mock}, config.DependencyConfig{
		StormThreshold: 3,
		StormWindow:    time.Minute,
	}, nil)
	return mock, prober
}

func TestPostgresProbeSuccess(t *testing.T) {
	mock, prober := newMockProber(t)

	rows := pgxmock.NewRows([]string{"result"}).AddRow(1)
	mock.ExpectQuery("SELECT 1").WillReturnRows(rows)

	res := prober.Probe(context.Background())
	if res.Err != nil {
		t.Errorf("Probe() error = %v, want nil", res.Err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %s", err)
	}
}

func TestPostgresProbeFailure(t *testing.T) {
	mock, prober := newMockProber(t)

	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("connection refused"))

	res := prober.Probe(context.Background())
	if res.Err == nil {
		t.Fatal("Probe() expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %s", err)
	}
}

func TestPostgresProbeUnexpectedResult(t *testing.T) {
	mock, prober := newMockProber(t)

	rows := pgxmock.NewRows([]string{"result"}).AddRow(42)
	mock.ExpectQuery("SELECT 1").WillReturnRows(rows)

	res := prober.Probe(context.Background())
	if res.Err == nil {
		t.Fatal("Probe() expected error for unexpected result, got nil")
	}
}

func TestPostgresProbeTimeout(t *testing.T) {
	mock, prober := newMockProber(t)

	mock.ExpectQuery("SELECT 1").WillDelayFor(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res := prober.Probe(ctx)
	if res.Err == nil {
		t.Error("Probe() expected timeout error, got nil")
	}
	// Don't check expectations here because the query didn't complete due to timeout
}

func TestPostgresProbeNoStats(t *testing.T) {
	// A pool with no statistics still probes; it just carries no metadata.
	mock, prober := newMockProber(t)

	rows := pgxmock.NewRows([]string{"result"}).AddRow(1)
	mock.ExpectQuery("SELECT 1").WillReturnRows(rows)

	res := prober.Probe(context.Background())
	if res.Err != nil {
		t.Fatalf("Probe() error = %v", res.Err)
	}
	if res.Metadata != nil {
		t.Errorf("metadata = %v, want none without pool stats", res.Metadata)
	}
}
