// Package store holds the persistence backends: an in-memory store for
// development and tests, SQLite for single-node deployments and Postgres.
// Every backend implements domain.Store and guarantees per-job atomic
// compare-and-swap.
package store

import (
	"sort"

	"legal-doc-analyzer/internal/domain"
)

// Driver names accepted by configuration.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverSupabase = "supabase"
)

func sortNotebooks(nbs []*domain.Notebook) {
	sort.SliceStable(nbs, func(i, j int) bool {
		if !nbs[i].UpdatedAt.Equal(nbs[j].UpdatedAt) {
			return nbs[i].UpdatedAt.After(nbs[j].UpdatedAt)
		}
		return nbs[i].ID < nbs[j].ID
	})
}

func sortNotes(notes []*domain.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
		}
		return notes[i].ID < notes[j].ID
	})
}
