// Package store persists notification messages and per-recipient delivery
// state.
//
// Two implementations share the Storage interface: MemoryStorage for tests
// and single-process setups, and PostgresStorage for durable deployments.
// Both guarantee atomic fan-out (a message is stored together with all of
// its delivery records or not at all), oldest-first pending retrieval,
// newest-first history, and idempotent delivered/read marks.
//
// PostgreSQL schema migrations are embedded and applied with Migrate:
//
//	pool, err := store.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := store.Migrate(ctx, pool, logger); err != nil {
//		return err
//	}
//	storage := store.NewPostgresStorage(pool)
package store
