// Package rows maps store changes onto the record and inference tables
// shared by the SQL backed stores.
package rows

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"orthoinfer/internal/infra/persistence/memory"
	"orthoinfer/pkg/domain"
)

// Record is one persisted entity, reaction or pathway.
type Record struct {
	ID      domain.DBID
	Kind    domain.EntityType
	Payload []byte
}

// InferenceKey is the primary key of an inference row.
func InferenceKey(rec domain.InferenceRecord) string {
	return strconv.FormatInt(int64(rec.Source), 10) + "|" + rec.Species
}

// Encode renders a stored value as a record row.
func Encode(v any) (Record, error) {
	switch n := v.(type) {
	case domain.PhysicalEntity:
		payload, err := domain.MarshalEntity(n)
		if err != nil {
			return Record{}, err
		}
		return Record{ID: n.Base().DBID, Kind: domain.EntityPhysical, Payload: payload}, nil
	case *domain.Reaction:
		payload, err := json.Marshal(n)
		if err != nil {
			return Record{}, fmt.Errorf("encode reaction %d: %w", n.DBID, err)
		}
		return Record{ID: n.DBID, Kind: domain.EntityReaction, Payload: payload}, nil
	case *domain.Pathway:
		payload, err := json.Marshal(n)
		if err != nil {
			return Record{}, fmt.Errorf("encode pathway %d: %w", n.DBID, err)
		}
		return Record{ID: n.DBID, Kind: domain.EntityPathway, Payload: payload}, nil
	default:
		return Record{}, fmt.Errorf("encode: unsupported value %T", v)
	}
}

// FromChanges collapses a transaction's changes into the final row per
// record and per inference key, ordered by id.
func FromChanges(changes []domain.Change) ([]Record, []domain.InferenceRecord, error) {
	records := make(map[domain.DBID]Record)
	inferences := make(map[string]domain.InferenceRecord)
	for _, c := range changes {
		if c.Entity == domain.EntityInference {
			rec, ok := c.After.(domain.InferenceRecord)
			if !ok {
				return nil, nil, fmt.Errorf("inference change carries %T", c.After)
			}
			inferences[InferenceKey(rec)] = rec
			continue
		}
		row, err := Encode(c.After)
		if err != nil {
			return nil, nil, err
		}
		records[row.ID] = row
	}
	ids := make([]domain.DBID, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	outRecords := make([]Record, 0, len(ids))
	for _, id := range domain.SortIDs(ids) {
		outRecords = append(outRecords, records[id])
	}
	keys := make([]string, 0, len(inferences))
	for k := range inferences {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	outInferences := make([]domain.InferenceRecord, 0, len(keys))
	for _, k := range keys {
		outInferences = append(outInferences, inferences[k])
	}
	return outRecords, outInferences, nil
}

// Loader accumulates rows read back from a database into a snapshot.
type Loader struct {
	snap memory.Snapshot
}

// Record decodes one record row.
func (l *Loader) Record(kind string, payload []byte) error {
	switch domain.EntityType(kind) {
	case domain.EntityPhysical:
		e, err := domain.UnmarshalEntity(payload)
		if err != nil {
			return err
		}
		l.snap.Entities = append(l.snap.Entities, e)
	case domain.EntityReaction:
		var r domain.Reaction
		if err := json.Unmarshal(payload, &r); err != nil {
			return fmt.Errorf("decode reaction: %w", err)
		}
		l.snap.Reactions = append(l.snap.Reactions, &r)
	case domain.EntityPathway:
		var p domain.Pathway
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode pathway: %w", err)
		}
		l.snap.Pathways = append(l.snap.Pathways, &p)
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}
	return nil
}

// Inference adds one inference row.
func (l *Loader) Inference(rec domain.InferenceRecord) {
	l.snap.Inferences = append(l.snap.Inferences, rec)
}

// Snapshot returns everything loaded so far.
func (l *Loader) Snapshot() memory.Snapshot { return l.snap }
