package core

import (
	"context"

	"orthoinfer/pkg/domain"
)

// storePrior answers session lookups from the committed state of a
// persistent store, one read view per lookup so commits made during the run
// are visible.
type storePrior struct {
	ctx   context.Context
	store domain.PersistentStore
}

func (p storePrior) view(fn func(domain.TransactionView)) {
	_ = p.store.View(p.ctx, func(v domain.TransactionView) error {
		fn(v)
		return nil
	})
}

func (p storePrior) FindEntity(id domain.DBID) (e domain.PhysicalEntity, ok bool) {
	p.view(func(v domain.TransactionView) { e, ok = v.FindEntity(id) })
	return e, ok
}

func (p storePrior) FindReaction(id domain.DBID) (r *domain.Reaction, ok bool) {
	p.view(func(v domain.TransactionView) { r, ok = v.FindReaction(id) })
	return r, ok
}

func (p storePrior) FindPathway(id domain.DBID) (pw *domain.Pathway, ok bool) {
	p.view(func(v domain.TransactionView) { pw, ok = v.FindPathway(id) })
	return pw, ok
}

func (p storePrior) FindInferred(source domain.DBID, species string) (rec domain.InferenceRecord, ok bool) {
	p.view(func(v domain.TransactionView) { rec, ok = v.FindInferred(source, species) })
	return rec, ok
}

func (p storePrior) ListInferences(species string) (out []domain.InferenceRecord) {
	p.view(func(v domain.TransactionView) { out = v.ListInferences(species) })
	return out
}

func (p storePrior) MaxID() (id domain.DBID) {
	p.view(func(v domain.TransactionView) { id = v.MaxID() })
	return id
}
