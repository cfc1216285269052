// Package database provides connection pool management for the roster
// database.
//
// The relay only reads from PostgreSQL: match rosters and player serial ids.
// Match and player rows are owned by the matchmaking service.
package database
