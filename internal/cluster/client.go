package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"distributed-cache/internal/cache"
)

// Wire format of the three peer RPCs. All numbers are unsigned 64-bit
// except the ordinals; payload bytes travel base64-encoded inside the JSON
// body.

// PutEntryRequest replicates one cache entry with its origin metadata.
type PutEntryRequest struct {
	Key                 string `json:"key"`
	ThisUpdateMicros    uint64 `json:"this_update_micros"`
	ExpiresMicros       uint64 `json:"expires_micros"`
	ObjectBytes         []byte `json:"object_bytes"`
	OriginNodeID        uint64 `json:"origin_node_id"`
	OriginNodeUpdateSeq uint64 `json:"origin_node_update_seq"`
}

// StateViewUpdateRequest pushes the sender's cluster state view.
type StateViewUpdateRequest struct {
	SenderOrdinal uint32            `json:"sender_ordinal"`
	View          map[uint64]uint64 `json:"view"`
}

// InitStateTransferRequest asks the receiver of the call to stream its
// entries that are newer than the given per-origin baselines back to the
// requesting replica.
type InitStateTransferRequest struct {
	ReceiverOrdinal uint32            `json:"receiver_ordinal"`
	Baselines       map[uint64]uint64 `json:"data_origin_id_and_baseline"`
}

// PeerClient talks to one remote replica's peer RPC surface. Every call
// carries a freshly minted peer token.
type PeerClient struct {
	address    string
	auth       *PeerAuthenticator
	httpClient *http.Client
}

// NewPeerClient returns a client for the peer at address (host:port).
func NewPeerClient(address string, auth *PeerAuthenticator) *PeerClient {
	return &PeerClient{
		address:    address,
		auth:       auth,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// PushStateView sends the local cluster state view to the peer.
func (c *PeerClient) PushStateView(ctx context.Context, senderOrdinal uint32, view map[uint64]uint64) error {
	err := c.post(ctx, "/internal/view", StateViewUpdateRequest{
		SenderOrdinal: senderOrdinal,
		View:          view,
	})
	if err != nil {
		return fmt.Errorf("pushing state view to '%s' failed: %w", c.address, err)
	}
	return nil
}

// RequestStateTransfer asks the peer to stream its newer-than-baseline
// entries back to receiverOrdinal.
func (c *PeerClient) RequestStateTransfer(ctx context.Context, receiverOrdinal uint32, baselines map[uint64]uint64) error {
	err := c.post(ctx, "/internal/transfer", InitStateTransferRequest{
		ReceiverOrdinal: receiverOrdinal,
		Baselines:       baselines,
	})
	if err != nil {
		return fmt.Errorf("requesting state transfer from '%s' failed: %w", c.address, err)
	}
	return nil
}

// PutCacheEntry sends one cache entry update to the peer.
func (c *PeerClient) PutCacheEntry(ctx context.Context, req PutEntryRequest) error {
	if err := c.post(ctx, "/internal/entry", req); err != nil {
		return fmt.Errorf("sending cache entry update to '%s' failed: %w", c.address, err)
	}
	return nil
}

func (c *PeerClient) post(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s%s", c.address, path)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AuthHeader, c.auth.CreateToken())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", cache.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: peer returned HTTP %d", cache.ErrConnection, resp.StatusCode)
	}
	return nil
}
