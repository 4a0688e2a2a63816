// Package database provides the SQLite connection and embedded migration
// runner for HomeLink Core.
//
// The hub stores everything — credentials, the account directory, and
// home data — in a single SQLite file opened in WAL mode. Migrations are
// compiled into the binary via the migrations package and applied at
// boot, each in its own transaction.
package database
