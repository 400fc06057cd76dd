// Package postgres implements the store interfaces on PostgreSQL through the
// pgx database/sql driver.
//
// Every store holds a store.DBTX so it can run against the pool or, via
// WithTx, inside a transaction started by store.RunInTransaction. Driver
// errors are translated to store sentinels by MapError. The schema lives in
// the migrations subpackage and is applied with goose.
package postgres
