package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/medride/internal/models"
)

// PushDispatcher tries the rider's websocket session first and falls back
// to posting the update to a notification webhook. Either path is
// best-effort; polling remains the supported delivery model.
type PushDispatcher struct {
	Endpoint string // notification service webhook, optional
	Client   *http.Client
	WS       *WSRegistry
}

func NewPushDispatcher(endpoint string, ws *WSRegistry) *PushDispatcher {
	return &PushDispatcher{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}, WS: ws}
}

func (p *PushDispatcher) BidUpdate(riderID int64, b *models.Bid) error {
	if p.WS != nil {
		if err := p.WS.BidUpdate(riderID, b); err == nil {
			return nil
		}
	}
	if p.Endpoint == "" {
		return nil
	}
	body, _ := json.Marshal(map[string]any{"rider_id": riderID, "bid": b})
	resp, err := p.Client.Post(p.Endpoint, "application/json", bytes.NewReader(body))
	if err == nil {
		resp.Body.Close()
	}
	return nil
}
