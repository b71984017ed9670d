package domain

import "context"

// Transaction exposes the operations a persistence implementation must
// support within an atomic scope. Stored records are treated as immutable;
// updates go through mutators applied to copies.
type Transaction interface {
	Snapshot() TransactionView
	CreateEntity(PhysicalEntity) error
	CreateReaction(*Reaction) error
	UpdateReaction(id DBID, mutator func(*Reaction) error) (*Reaction, error)
	CreatePathway(*Pathway) error
	UpdatePathway(id DBID, mutator func(*Pathway) error) (*Pathway, error)
	RecordInference(InferenceRecord) error
}

// TransactionView provides read-only access to committed (or staged) data.
type TransactionView interface {
	RuleView
	FindInferred(source DBID, species string) (InferenceRecord, bool)
	ListInferences(species string) []InferenceRecord
	ListReactions() []*Reaction
	ListPathways() []*Pathway
	MaxID() DBID
}

// PersistentStore is the abstraction over durable backends holding the
// inferred graph.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Close() error
}
