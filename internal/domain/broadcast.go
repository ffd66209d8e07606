package domain

import "context"

// BroadcastResult summarises one broadcast trigger. For relayed broadcasts
// only Relayed is set; delivery happens asynchronously on every instance.
type BroadcastResult struct {
	Targets   int  `json:"targets"`
	Delivered int  `json:"delivered"`
	Failed    int  `json:"failed"`
	Relayed   bool `json:"relayed"`
}

// Publisher fans a text message out to connected peers.
type Publisher interface {
	Publish(ctx context.Context, message string) (BroadcastResult, error)
}

// ConnectionCounter reports how many peers are connected to this instance.
type ConnectionCounter interface {
	Len() int
}
