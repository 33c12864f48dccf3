package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rmaker/homectl/pkg/datamodel"
	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned for unknown settings.
var ErrNotFound = errors.New("state: not found")

// Persister stores cache entries and small named settings across restarts.
type Persister interface {
	LoadEntries() ([]Entry, error)
	SaveEntry(e Entry) error
	LoadSetting(name string) (string, error)
	SaveSetting(name, value string) error
	Close() error
}

var (
	bucketAttributes = []byte("attributes")
	bucketSettings   = []byte("settings")
)

// record is the on-disk form of an Entry.
type record struct {
	Value   int64     `cbor:"1,keyasint"`
	Source  Source    `cbor:"2,keyasint"`
	Updated time.Time `cbor:"3,keyasint"`
}

var (
	recordEncMode cbor.EncMode
	recordDecMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}
	if recordEncMode, err = encOpts.EncMode(); err != nil {
		panic(fmt.Sprintf("state: cbor encoder mode: %v", err))
	}
	decOpts := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}
	if recordDecMode, err = decOpts.DecMode(); err != nil {
		panic(fmt.Sprintf("state: cbor decoder mode: %v", err))
	}
}

const keyLen = 8 + 2 + 4 + 4

// encodeKey lays the key out big-endian so bolt iterates in key order.
func encodeKey(k Key) []byte {
	b := make([]byte, 0, keyLen)
	b = binary.BigEndian.AppendUint64(b, uint64(k.Node))
	b = binary.BigEndian.AppendUint16(b, uint16(k.Endpoint))
	b = binary.BigEndian.AppendUint32(b, uint32(k.Cluster))
	return binary.BigEndian.AppendUint32(b, uint32(k.Attribute))
}

func decodeKey(b []byte) (Key, error) {
	if len(b) != keyLen {
		return Key{}, fmt.Errorf("state: bad key length %d", len(b))
	}
	return Key{
		Node:      datamodel.NodeID(binary.BigEndian.Uint64(b[0:8])),
		Endpoint:  datamodel.EndpointID(binary.BigEndian.Uint16(b[8:10])),
		Cluster:   datamodel.ClusterID(binary.BigEndian.Uint32(b[10:14])),
		Attribute: datamodel.AttributeID(binary.BigEndian.Uint32(b[14:18])),
	}, nil
}

// BoltPersister stores entries in a bbolt database.
type BoltPersister struct {
	db *bolt.DB
}

// NewBoltPersister opens or creates the database at path.
func NewBoltPersister(path string) (*BoltPersister, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketAttributes, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltPersister{db: db}, nil
}

// LoadEntries returns all stored entries in key order.
func (p *BoltPersister) LoadEntries() ([]Entry, error) {
	var out []Entry
	err := p.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAttributes).ForEach(func(k, v []byte) error {
			key, err := decodeKey(k)
			if err != nil {
				return err
			}
			var rec record
			if err := recordDecMode.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			out = append(out, Entry{Key: key, Value: rec.Value, Source: rec.Source, Updated: rec.Updated})
			return nil
		})
	})
	return out, err
}

// SaveEntry stores e, replacing the previous value.
func (p *BoltPersister) SaveEntry(e Entry) error {
	data, err := recordEncMode.Marshal(record{Value: e.Value, Source: e.Source, Updated: e.Updated})
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAttributes).Put(encodeKey(e.Key), data)
	})
}

// LoadSetting returns a stored setting or ErrNotFound.
func (p *BoltPersister) LoadSetting(name string) (string, error) {
	var val string
	err := p.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSettings).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("setting %s: %w", name, ErrNotFound)
		}
		val = string(data)
		return nil
	})
	return val, err
}

// SaveSetting stores a named setting.
func (p *BoltPersister) SaveSetting(name, value string) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Put([]byte(name), []byte(value))
	})
}

// Close closes the database.
func (p *BoltPersister) Close() error {
	return p.db.Close()
}

// MemoryPersister keeps everything in memory.
type MemoryPersister struct {
	mu       sync.Mutex
	entries  map[Key]Entry
	settings map[string]string
}

// NewMemoryPersister creates an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{
		entries:  make(map[Key]Entry),
		settings: make(map[string]string),
	}
}

// LoadEntries returns all stored entries in key order.
func (p *MemoryPersister) LoadEntries() ([]Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

// SaveEntry stores e.
func (p *MemoryPersister) SaveEntry(e Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[e.Key] = e
	return nil
}

// LoadSetting returns a stored setting or ErrNotFound.
func (p *MemoryPersister) LoadSetting(name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.settings[name]
	if !ok {
		return "", fmt.Errorf("setting %s: %w", name, ErrNotFound)
	}
	return v, nil
}

// SaveSetting stores a named setting.
func (p *MemoryPersister) SaveSetting(name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings[name] = value
	return nil
}

// Close is a no-op.
func (p *MemoryPersister) Close() error { return nil }
