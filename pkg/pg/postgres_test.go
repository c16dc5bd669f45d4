package pg

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/chat/chattest"
	"github.com/mahaj/carmarket-chat/pkg/snowflake"
)

// Set PG_TEST_URL to run against a live database.
func liveContext(t *testing.T) context.Context {
	t.Helper()
	if os.Getenv("PG_TEST_URL") == "" {
		t.Skip("PG_TEST_URL not set")
	}
	return context.Background()
}

func TestPostgresStoreContract(t *testing.T) {
	ctx := liveContext(t)
	pool, err := Connect(ctx, os.Getenv("PG_TEST_URL"))
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if err := Migrate(ctx, pool, true); err != nil {
		t.Fatal(err)
	}
	ids, _ := snowflake.NewNode(4)
	chattest.RunStoreTests(t, NewPostgresStore(pool, ids))
}

func TestDirectoryProfile(t *testing.T) {
	ctx := liveContext(t)
	pool, err := Connect(ctx, os.Getenv("PG_TEST_URL"))
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if err := Migrate(ctx, pool, true); err != nil {
		t.Fatal(err)
	}

	id := uuid.NewString()
	if _, err := pool.Exec(ctx, `INSERT INTO users (id, display_name, role, company_name) VALUES ($1, 'Dana', 'dealership', 'Dana Motors')`, id); err != nil {
		t.Fatal(err)
	}
	dir := NewDirectory(pool)

	p, err := dir.Profile(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "Dana" || p.CompanyName != "Dana Motors" || p.Role != "dealership" {
		t.Errorf("profile: got %+v", p)
	}
	if _, err := dir.Profile(ctx, uuid.NewString()); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("missing user: got %v, want ErrNotFound", err)
	}
}
