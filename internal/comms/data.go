package comms

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// dataVersion is one stored revision of an artifact.
type dataVersion struct {
	versionID string
	payload   any
	metadata  map[string]any
	storedAt  time.Time
}

// DataChannel is a channel that additionally offers content-addressed
// storage with explicit versioning, used for artifacts too large for
// inline message content. Messages on a data channel typically carry
// only the data ID and version of the artifact they refer to.
type DataChannel struct {
	*QueueChannel

	storeMu sync.RWMutex
	store   map[string][]dataVersion
}

// NewDataChannel creates a data channel with the given queue capacity.
func NewDataChannel(id string, capacity int) *DataChannel {
	return &DataChannel{
		QueueChannel: NewChannel(id, ChannelData, capacity),
		store:        make(map[string][]dataVersion),
	}
}

// StoreData stores a new version of an artifact and returns the version
// ID. Every store appends; earlier versions stay retrievable.
func (c *DataChannel) StoreData(dataID string, payload any, metadata map[string]any) (string, error) {
	if dataID == "" {
		return "", ErrInvalidMessage
	}

	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	v := dataVersion{
		versionID: uuid.NewString(),
		payload:   payload,
		metadata:  metadata,
		storedAt:  time.Now().UTC(),
	}
	c.store[dataID] = append(c.store[dataID], v)
	return v.versionID, nil
}

// GetData retrieves an artifact. An empty versionID returns the latest
// version. Unknown IDs return ErrDataNotFound.
func (c *DataChannel) GetData(dataID, versionID string) (any, error) {
	c.storeMu.RLock()
	defer c.storeMu.RUnlock()

	versions := c.store[dataID]
	if len(versions) == 0 {
		return nil, ErrDataNotFound
	}
	if versionID == "" {
		return versions[len(versions)-1].payload, nil
	}
	for _, v := range versions {
		if v.versionID == versionID {
			return v.payload, nil
		}
	}
	return nil, ErrDataNotFound
}

// Versions returns the version IDs of an artifact in storage order.
func (c *DataChannel) Versions(dataID string) []string {
	c.storeMu.RLock()
	defer c.storeMu.RUnlock()

	versions := c.store[dataID]
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.versionID
	}
	return out
}
