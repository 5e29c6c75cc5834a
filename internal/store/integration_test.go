//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "claimcheck",
			"POSTGRES_PASSWORD": "claimcheck",
			"POSTGRES_DB":       "claimcheck",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start postgres: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := pg.Host(ctx)
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get host: %v", err)
	}
	return pg, fmt.Sprintf("postgres://claimcheck:claimcheck@%s:%s/claimcheck?sslmode=disable", host, port.Port())
}

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	pg, dsn := startPostgres(t, ctx)
	defer func() { _ = pg.Terminate(ctx) }()

	var migErr error
	for i := 0; i < 6; i++ {
		if migErr = Migrate("", dsn, "up", 0); migErr == nil {
			break
		}
		time.Sleep(300 * time.Millisecond)
	}
	if migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}

	st, err := Open(ctx, Config{Driver: Postgres, DSN: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	created, err := st.CreateResearch(ctx, sampleRecord())
	if err != nil {
		t.Fatalf("CreateResearch: %v", err)
	}
	found, ok, err := st.FindByStatement(ctx, "Unemployment fell to 3%.")
	if err != nil || !ok || found.ID != created.ID {
		t.Fatalf("FindByStatement: ok=%v err=%v id=%s", ok, err, found.ID)
	}
	if len(found.Verdict.ResourcesAgreed) != 1 || found.Verdict.ResourcesAgreed[0].Domain != "bls.gov" {
		t.Fatalf("references not preserved: %#v", found.Verdict.ResourcesAgreed)
	}

	if err := Migrate("", dsn, "down", 0); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
}
