package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vikram2211/k2k-backend-sub000/engine"
)

// auditSubject is the NATS subject plant dashboards and the reporting pipeline
// subscribe to.
const auditSubject = "k2k.production.audit"

// AuditService publishes engine audit events to NATS. Publishing is
// fire-and-forget: a failed emit is logged and never fails the business
// operation that produced it.
type AuditService struct {
	nc *nats.Conn
}

// NewAuditService connects to the NATS server named by NATS_URL. An empty
// NATS_URL falls back to the default local server.
func NewAuditService() (*AuditService, error) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url,
		nats.Name("k2k-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	return &AuditService{nc: nc}, nil
}

// Emit implements engine.Auditor.
func (s *AuditService) Emit(event engine.AuditEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to encode audit event: %v", err)
		return
	}
	if err := s.nc.Publish(auditSubject, payload); err != nil {
		log.Printf("Failed to publish audit event: %v", err)
	}
}

// Close drains the connection so buffered events flush before shutdown.
func (s *AuditService) Close() {
	if s.nc == nil {
		return
	}
	if err := s.nc.Drain(); err != nil {
		log.Printf("Failed to drain NATS connection: %v", err)
	}
}
