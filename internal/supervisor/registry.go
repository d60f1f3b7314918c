package supervisor

import (
	"context"
	"fmt"
	"time"

	memdb "github.com/hashicorp/go-memdb"
)

// channelEntry is the ChannelSupervisorEntry: one running (or
// completed) recording task tracked by the supervisor, indexed by
// ChannelID the way the teacher's database/memdb.go indexes its
// concurrency counters by m3uIndex.
type channelEntry struct {
	ChannelID     string
	Cancel        context.CancelFunc
	Done          chan struct{}
	LastStartTime time.Time
}

func (e *channelEntry) isDone() bool {
	select {
	case <-e.Done:
		return true
	default:
		return false
	}
}

var registrySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		"channels": {
			Name: "channels",
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ChannelID"},
				},
			},
		},
	},
}

// registry is the in-memory indexed store of channelEntry records.
type registry struct {
	db *memdb.MemDB
}

func newRegistry() (*registry, error) {
	db, err := memdb.NewMemDB(registrySchema)
	if err != nil {
		return nil, fmt.Errorf("supervisor: creating channel registry: %w", err)
	}
	return &registry{db: db}, nil
}

func (r *registry) upsert(e *channelEntry) {
	txn := r.db.Txn(true)
	txn.Insert("channels", e)
	txn.Commit()
}

func (r *registry) get(channelID string) (*channelEntry, bool) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First("channels", "id", channelID)
	if err != nil || raw == nil {
		return nil, false
	}
	return raw.(*channelEntry), true
}

func (r *registry) delete(channelID string) {
	txn := r.db.Txn(true)
	if e, ok := r.get(channelID); ok {
		txn.Delete("channels", e)
	}
	txn.Commit()
}

func (r *registry) all() []*channelEntry {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get("channels", "id")
	if err != nil {
		return nil
	}

	var entries []*channelEntry
	for raw := it.Next(); raw != nil; raw = it.Next() {
		entries = append(entries, raw.(*channelEntry))
	}
	return entries
}
