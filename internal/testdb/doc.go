// Package testdb provides helpers for integration tests that run against a
// real PostgreSQL database.
//
// Tests obtain a migrated connection with GetTestDBWithT and isolate their
// writes with WithTx:
//
//	db := testdb.GetTestDBWithT(t)
//	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//		tasks := postgres.NewPostgresTaskStore(tx, nil)
//		// ...
//	})
//
// When neither TASKER_TEST_DB_URL nor DATABASE_URL is set the tests are
// skipped.
package testdb
