// Package roster provides match roster lookups against PostgreSQL.
//
// The relay core loads each room's roster exactly once at creation; this
// package is that collaborator. It also answers the membership check the
// transport boundary performs before a stream reaches the core.
package roster
