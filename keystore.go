package wastore

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/wastore/wastore/docstore"
	"github.com/wastore/wastore/waerr"
	"github.com/wastore/wastore/wire"
)

// KeyCategory is one of the six fixed kinds of Signal key material the store
// persists. The set is closed; deltas naming anything else are rejected.
type KeyCategory string

const (
	CategorySession             KeyCategory = "session"
	CategoryPreKey              KeyCategory = "pre-key"
	CategorySenderKey           KeyCategory = "sender-key"
	CategoryAppStateSyncKey     KeyCategory = "app-state-sync-key"
	CategoryAppStateSyncVersion KeyCategory = "app-state-sync-version"
	CategorySenderKeyMemory     KeyCategory = "sender-key-memory"
)

// AllKeyCategories lists the closed category set.
var AllKeyCategories = []KeyCategory{
	CategorySession,
	CategoryPreKey,
	CategorySenderKey,
	CategoryAppStateSyncKey,
	CategoryAppStateSyncVersion,
	CategorySenderKeyMemory,
}

func (c KeyCategory) valid() bool { return slices.Contains(AllKeyCategories, c) }

// Delta maps categories to id → value updates. A nil value removes the key.
type Delta map[KeyCategory]map[string]any

// AppStateSyncKeyFingerprint identifies the device set a sync key belongs to.
type AppStateSyncKeyFingerprint struct {
	RawID         uint32   `json:"rawId"`
	CurrentIndex  uint32   `json:"currentIndex"`
	DeviceIndexes []uint32 `json:"deviceIndexes"`
}

// AppStateSyncKeyData is the structured value of the app-state-sync-key
// category: key material plus fingerprint and a normalized millisecond
// timestamp.
type AppStateSyncKeyData struct {
	KeyData     wire.Buffer                 `json:"keyData,omitempty"`
	Fingerprint *AppStateSyncKeyFingerprint `json:"fingerprint,omitempty"`
	Timestamp   int64                       `json:"timestamp,omitempty"`
}

// AppStateSyncVersion is the versioned hash state of the
// app-state-sync-version category.
type AppStateSyncVersion struct {
	Version       uint64                `json:"version"`
	Hash          wire.Buffer           `json:"hash,omitempty"`
	IndexValueMap map[string]IndexValue `json:"indexValueMap,omitempty"`
}

// IndexValue is one entry of an AppStateSyncVersion index-value map.
type IndexValue struct {
	ValueMac wire.Buffer `json:"valueMac"`
}

// decodeHooks maps categories to their post-decode transform. Categories
// without an entry yield the generic decoded value (buffers revived).
var decodeHooks = map[KeyCategory]func([]byte) (any, error){
	CategoryPreKey:              decodePreKey,
	CategoryAppStateSyncKey:     decodeAppStateSyncKey,
	CategoryAppStateSyncVersion: decodeAppStateSyncVersion,
	CategorySenderKeyMemory:     decodeSenderKeyMemory,
}

func decodePreKey(data []byte) (any, error) {
	var kp KeyPair
	if err := wire.Decode(data, &kp); err != nil {
		return nil, err
	}
	return &kp, nil
}

func decodeAppStateSyncKey(data []byte) (any, error) {
	// Pointer fields distinguish missing from zero so the defaulting rules
	// (currentIndex ← rawId, deviceIndexes ← empty) apply only when absent.
	var raw struct {
		KeyData     wire.Buffer `json:"keyData"`
		Fingerprint *struct {
			RawID         uint32   `json:"rawId"`
			CurrentIndex  *uint32  `json:"currentIndex"`
			DeviceIndexes []uint32 `json:"deviceIndexes"`
		} `json:"fingerprint"`
		Timestamp any `json:"timestamp"`
	}
	if err := wire.Decode(data, &raw); err != nil {
		return nil, err
	}
	out := &AppStateSyncKeyData{KeyData: raw.KeyData}
	if raw.Fingerprint != nil {
		fp := &AppStateSyncKeyFingerprint{
			RawID:         raw.Fingerprint.RawID,
			CurrentIndex:  raw.Fingerprint.RawID,
			DeviceIndexes: []uint32{},
		}
		if raw.Fingerprint.CurrentIndex != nil {
			fp.CurrentIndex = *raw.Fingerprint.CurrentIndex
		}
		if raw.Fingerprint.DeviceIndexes != nil {
			fp.DeviceIndexes = raw.Fingerprint.DeviceIndexes
		}
		out.Fingerprint = fp
	}
	if raw.Timestamp != nil {
		ts, err := wire.NormalizeTimestamp(raw.Timestamp)
		if err != nil {
			return nil, err
		}
		out.Timestamp = ts
	}
	return out, nil
}

func decodeAppStateSyncVersion(data []byte) (any, error) {
	var v AppStateSyncVersion
	if err := wire.Decode(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeSenderKeyMemory(data []byte) (any, error) {
	var m map[string]bool
	if err := wire.Decode(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// resolveKey maps (session, category, id) to the physical storage key.
// Within a session the mapping is injective over (category, id); isolation
// between sessions is enforced by the record's indexed session column, not
// by parsing the key back apart.
func resolveKey(session string, category KeyCategory, id string) (string, error) {
	key := session + "-" + string(category) + "-" + id
	if len(key) > docstore.MaxKeyLen {
		return "", waerr.Validationf("storage key %q exceeds %d characters", key, docstore.MaxKeyLen)
	}
	return key, nil
}

// credsKey is the singleton credential record key for a session.
func credsKey(session string) string { return session + "-creds" }

// SignalKeyStore implements the get/set/clear contract over key categories
// for one session namespace.
type SignalKeyStore struct {
	gw      *docstore.Gateway
	session string
	logger  *log.Logger
}

// Get fetches ids of one category. Ids never written are simply absent from
// the result. A failure on one id is logged and that id treated as absent;
// it does not abort retrieval of the remaining ids.
func (s *SignalKeyStore) Get(ctx context.Context, category KeyCategory, ids []string) (map[string]any, error) {
	if !category.valid() {
		return nil, waerr.Validationf("unknown key category %q", category)
	}
	out := make(map[string]any, len(ids))
	for _, id := range ids {
		key, err := resolveKey(s.session, category, id)
		if err != nil {
			logf(s.logger, "keystore: get %s/%s: %v", category, id, err)
			continue
		}
		rec, err := s.gw.Read(ctx, key)
		if err != nil {
			logf(s.logger, "keystore: get %s/%s: %v", category, id, err)
			continue
		}
		if rec == nil {
			continue
		}
		value, err := s.decode(category, rec.Value)
		if err != nil {
			logf(s.logger, "keystore: decode %s/%s: %v", category, id, err)
			continue
		}
		out[id] = value
	}
	return out, nil
}

func (s *SignalKeyStore) decode(category KeyCategory, data []byte) (any, error) {
	if hook, ok := decodeHooks[category]; ok {
		return hook(data)
	}
	return wire.Unmarshal(data)
}

// Set applies a delta. Non-nil values are written, nil values deleted. The
// first failure is logged and returned, aborting the remaining updates;
// callers must treat a failed Set as partially applied. Categories and ids
// are processed in sorted order so the partial prefix is deterministic.
func (s *SignalKeyStore) Set(ctx context.Context, delta Delta) error {
	for category := range delta {
		if !category.valid() {
			return waerr.Validationf("unknown key category %q", category)
		}
	}
	for _, category := range sortedKeys(delta) {
		updates := delta[category]
		for _, id := range sortedKeys(updates) {
			key, err := resolveKey(s.session, category, id)
			if err != nil {
				return err
			}
			if err := s.apply(ctx, key, updates[id]); err != nil {
				logf(s.logger, "keystore: set %s/%s: %v", category, id, err)
				return fmt.Errorf("set %s/%s: %w", category, id, err)
			}
		}
	}
	return nil
}

func (s *SignalKeyStore) apply(ctx context.Context, key string, value any) error {
	if value == nil {
		return s.gw.Delete(ctx, key)
	}
	data, err := wire.Marshal(value)
	if err != nil {
		return err
	}
	return s.gw.Write(ctx, key, s.session, data)
}

// Clear removes every record in the session namespace except the credential
// record.
func (s *SignalKeyStore) Clear(ctx context.Context) error {
	return s.gw.DeleteNamespace(ctx, s.session, []string{credsKey(s.session)})
}

// sortedKeys returns the map's keys in sorted order.
func sortedKeys[M ~map[K]V, K cmp.Ordered, V any](m M) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
