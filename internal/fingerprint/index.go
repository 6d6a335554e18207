package fingerprint

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/MacPhobos/audio-ident-sub001/internal/apperr"
)

var (
	bucketHashes      = []byte("hashes")
	bucketTrackHashes = []byte("track_hashes")
)

// Index is the embedded inverted index over fingerprint hashes (spec
// §4.2, C2): an "address -> list of couples" map backed by bbolt, the
// same single-writer/multi-reader embedded KV model the teacher reaches
// for MongoDB to provide remotely. No teacher file covers an embedded
// inverted index, so this is grounded on bbolt's own transaction model
// plus the bucket-layout convention shown by the other pack repos that
// use it (go-musicfox, sentryshot) for simple key->value-list storage.
type Index struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the bbolt-backed index at path.
func Open(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, apperr.New(apperr.CodeIndexUnavailable, "failed to open fingerprint index", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketHashes); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketTrackHashes); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, apperr.New(apperr.CodeIndexUnavailable, "failed to initialize fingerprint index buckets", err)
	}

	return &Index{db: db}, nil
}

// Close closes the underlying bbolt database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Match is one inverted-index hit: a stored couple plus the offset (in
// milliseconds) between the query's own anchor time and the indexed
// anchor time for that address, used by the exact lane's offset
// histogram (spec §4.6).
type Match struct {
	Couple   Couple
	QueryMs  uint32
	OffsetMs int64
}

// IndexTrack stores the given hashes for trackID. Re-indexing the same
// track first deletes its prior entries so IndexTrack is idempotent per track
// (spec §4.2 invariant).
func (idx *Index) IndexTrack(trackID uuid.UUID, hashes []Hash) error {
	return idx.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteTrackLocked(tx, trackID); err != nil {
			return err
		}

		hb := tx.Bucket(bucketHashes)
		tb := tx.Bucket(bucketTrackHashes)

		addrSet := make(map[uint32]struct{}, len(hashes))
		for _, h := range hashes {
			key := addressKey(h.Address)
			existing := hb.Get(key)
			entries, err := decodeEntries(existing)
			if err != nil {
				return err
			}
			entries = append(entries, h.Couple)
			encoded, err := encodeEntries(entries)
			if err != nil {
				return err
			}
			if err := hb.Put(key, encoded); err != nil {
				return err
			}
			addrSet[h.Address] = struct{}{}
		}

		addrList := make([]uint32, 0, len(addrSet))
		for a := range addrSet {
			addrList = append(addrList, a)
		}
		sort.Slice(addrList, func(i, j int) bool { return addrList[i] < addrList[j] })

		trackAddrs := make([]byte, len(addrList)*4)
		for i, a := range addrList {
			binary.BigEndian.PutUint32(trackAddrs[i*4:], a)
		}
		return tb.Put(trackID[:], trackAddrs)
	})
}

// DeleteTrack removes all hash entries previously indexed for trackID.
func (idx *Index) DeleteTrack(trackID uuid.UUID) error {
	return idx.db.Update(func(tx *bbolt.Tx) error {
		return deleteTrackLocked(tx, trackID)
	})
}

func deleteTrackLocked(tx *bbolt.Tx, trackID uuid.UUID) error {
	tb := tx.Bucket(bucketTrackHashes)
	hb := tx.Bucket(bucketHashes)

	raw := tb.Get(trackID[:])
	if raw == nil {
		return nil
	}

	for i := 0; i+4 <= len(raw); i += 4 {
		addr := binary.BigEndian.Uint32(raw[i : i+4])
		key := addressKey(addr)
		existing := hb.Get(key)
		entries, err := decodeEntries(existing)
		if err != nil {
			return err
		}

		filtered := entries[:0]
		for _, c := range entries {
			if c.TrackID != trackID {
				filtered = append(filtered, c)
			}
		}

		if len(filtered) == 0 {
			if err := hb.Delete(key); err != nil {
				return err
			}
			continue
		}
		encoded, err := encodeEntries(filtered)
		if err != nil {
			return err
		}
		if err := hb.Put(key, encoded); err != nil {
			return err
		}
	}

	return tb.Delete(trackID[:])
}

// Query looks up every hash address in queryHashes and returns, per
// address, the stored couples alongside the query's own anchor time so
// callers can build the offset histogram for consensus scoring.
func (idx *Index) Query(queryHashes []Hash) ([]Match, error) {
	var matches []Match

	err := idx.db.View(func(tx *bbolt.Tx) error {
		hb := tx.Bucket(bucketHashes)
		for _, qh := range queryHashes {
			raw := hb.Get(addressKey(qh.Address))
			if raw == nil {
				continue
			}
			entries, err := decodeEntries(raw)
			if err != nil {
				return err
			}
			for _, c := range entries {
				matches = append(matches, Match{
					Couple:   c,
					QueryMs:  qh.Couple.AnchorTimeMs,
					OffsetMs: int64(c.AnchorTimeMs) - int64(qh.Couple.AnchorTimeMs),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.New(apperr.CodeIndexUnavailable, "fingerprint index query failed", err)
	}

	return matches, nil
}

func addressKey(address uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, address)
	return key
}

// coupleSize is the fixed on-disk width of one encoded Couple: 4 bytes
// anchor time + 16 bytes track UUID.
const coupleSize = 4 + 16

func encodeEntries(entries []Couple) ([]byte, error) {
	buf := make([]byte, len(entries)*coupleSize)
	for i, c := range entries {
		off := i * coupleSize
		binary.BigEndian.PutUint32(buf[off:], c.AnchorTimeMs)
		copy(buf[off+4:off+coupleSize], c.TrackID[:])
	}
	return buf, nil
}

func decodeEntries(raw []byte) ([]Couple, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw)%coupleSize != 0 {
		return nil, fmt.Errorf("corrupt fingerprint index entry: length %d not a multiple of %d", len(raw), coupleSize)
	}

	count := len(raw) / coupleSize
	entries := make([]Couple, count)
	for i := 0; i < count; i++ {
		off := i * coupleSize
		entries[i].AnchorTimeMs = binary.BigEndian.Uint32(raw[off:])
		copy(entries[i].TrackID[:], raw[off+4:off+coupleSize])
	}
	return entries, nil
}
