package healing

import "github.com/hashicorp/go-memdb"

const (
	tableEntries = "entry"

	indexID        = "id"
	indexTargetKey = "target_key"
	indexTargetURL = "target_key_domain"
)

func newSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableEntries: {
				Name: tableEntries,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
					indexTargetKey: {
						Name:    indexTargetKey,
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "TargetKey"},
					},
					indexTargetURL: {
						Name:   indexTargetURL,
						Unique: false,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "TargetKey"},
								&memdb.StringFieldIndex{Field: "Domain"},
							},
						},
					},
				},
			},
		},
	}
}

func newDB() (*memdb.MemDB, error) {
	return memdb.NewMemDB(newSchema())
}

// entriesByTargetKey returns every entry for targetKey across all domains.
func entriesByTargetKey(db *memdb.MemDB, targetKey string) []*Entry {
	txn := db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableEntries, indexTargetKey, targetKey)
	if err != nil {
		return nil
	}
	return collect(it)
}

// entriesByTargetKeyDomain returns entries for targetKey scoped to domain.
func entriesByTargetKeyDomain(db *memdb.MemDB, targetKey, domain string) []*Entry {
	txn := db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableEntries, indexTargetURL, targetKey, domain)
	if err != nil {
		return nil
	}
	return collect(it)
}

// allEntries walks the id index's radix tree with an empty prefix to get a
// full table scan.
func allEntries(db *memdb.MemDB) []*Entry {
	txn := db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableEntries, indexID+"_prefix", "")
	if err != nil {
		return nil
	}
	return collect(it)
}

func collect(it memdb.ResultIterator) []*Entry {
	var out []*Entry
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, obj.(*Entry))
	}
	return out
}

func lookupByKey(db *memdb.MemDB, key string) *Entry {
	txn := db.Txn(false)
	defer txn.Abort()
	obj, err := txn.First(tableEntries, indexID, key)
	if err != nil || obj == nil {
		return nil
	}
	return obj.(*Entry)
}

func insert(db *memdb.MemDB, e *Entry) error {
	txn := db.Txn(true)
	if err := txn.Insert(tableEntries, e); err != nil {
		txn.Abort()
		return err
	}
	txn.Commit()
	return nil
}
