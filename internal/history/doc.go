// Package history persists a record of every scene run in SQLite.
//
// A run is created when the scene starts and updated once it finishes, so
// a crash mid-run leaves a "running" row behind rather than nothing.
//
// Usage:
//
//	repo := history.NewSQLiteRepository(db.DB)
//	run := &history.Run{ID: uuid.NewString(), Scene: "notes-demo", StartedAt: time.Now()}
//	if err := repo.Create(ctx, run); err != nil {
//	    return err
//	}
//	run.Finish(history.StatusCompleted, nil, time.Now())
//	err := repo.Update(ctx, run)
package history
