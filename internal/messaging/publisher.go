// Package messaging publishes scoring lifecycle events over NATS.
package messaging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

const (
	SubjectScoreComputed      = "supplyscore.score.computed"
	SubjectScorecardActivated = "supplyscore.scorecard.activated"
)

// Publisher emits events to downstream consumers (credit desks, audit
// pipelines). A nil *Publisher drops events, so messaging stays optional.
type Publisher struct {
	conn *nats.Conn
	log  *slog.Logger
}

func NewPublisher(url string, log *slog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("supplyscore-scoring"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &Publisher{conn: conn, log: log}, nil
}

// ScoreComputed announces a finished scoring request. Publish failures are
// logged and swallowed; event delivery never blocks or fails a score.
func (p *Publisher) ScoreComputed(sr *models.ScoreRequest) {
	if p == nil {
		return
	}
	p.publish(SubjectScoreComputed, sr)
}

// ScorecardActivated announces a version swap.
func (p *Publisher) ScorecardActivated(v *models.ScorecardVersion) {
	if p == nil {
		return
	}
	p.publish(SubjectScorecardActivated, map[string]interface{}{
		"version_id":   v.ID,
		"version":      v.Version,
		"provenance":   v.Provenance,
		"activated_at": v.ActivatedAt,
	})
}

func (p *Publisher) publish(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Drain()
}
