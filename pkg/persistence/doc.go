// Package persistence saves and restores access-control snapshots.
//
// Two backends are available. PostgresSnapshotter appends each snapshot to
// the access_snapshots table and loads the newest row. RedisSnapshotter keeps
// the newest snapshot under one key.
//
// Restoring never bypasses the enforcer:
//
//	snap, err := store.Load(ctx)
//	if err == nil && snap != nil {
//		err = enforcer.Restore(*snap)
//	}
//
// Scheduler takes snapshots on a cron schedule and flushes a final one on Stop.
package persistence
