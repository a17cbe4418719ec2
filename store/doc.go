// Package store defines the persistence model and the narrow repository
// contract the engine is written against.
//
// Implementations:
//
//   - store/memstore: in-process maps guarded by a mutex, for tests, the load
//     generator and single-node development.
//   - store/pgstore: PostgreSQL over database/sql and the pgx driver, with
//     embedded goose migrations.
//
// Every mutation that must be atomic with another runs inside
// [Store.WithTx]; the Repository passed to the callback is bound to that
// transaction.
package store
