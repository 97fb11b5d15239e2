package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	StreamName    = "SCRAPER_EVENTS"
	subjectPrefix = "scraper"
)

// messageNamespace scopes deterministic message ids so redelivered events dedupe.
var messageNamespace = uuid.MustParse("8b1e2f4c-5d3a-4c1e-9a7b-2f6d0e4c8a11")

type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher forwards broadcaster events to JetStream.
type NATSPublisher struct {
	nc     *nats.Conn
	js     streamPublisher
	logger *zap.Logger
}

// ConnectNATS dials the server and makes sure the events stream exists.
func ConnectNATS(ctx context.Context, url string, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("exscraper"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "jetstream")
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{subjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     72 * time.Hour,
		Duplicates: 10 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "create events stream")
	}

	return &NATSPublisher{nc: nc, js: js, logger: logger}, nil
}

// Run forwards events until ctx is cancelled. Publish failures are logged and
// the event is dropped; the ledger remains the source of truth.
func (p *NATSPublisher) Run(ctx context.Context, b *Broadcaster) error {
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, e); err != nil {
				p.logger.Warn("failed to publish ledger event",
					zap.String("account", e.Account),
					zap.String("kind", string(e.Kind)),
					zap.Error(err))
			}
		}
	}
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

func (p *NATSPublisher) publish(ctx context.Context, e LedgerEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	_, err = p.js.Publish(ctx, subject(e), data, jetstream.WithMsgID(messageID(e)))
	return err
}

// subject builds scraper.<account>.<kind>; NATS tokens cannot hold dots or spaces.
func subject(e LedgerEvent) string {
	account := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(e.Account)
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, account, e.Kind)
}

func messageID(e LedgerEvent) string {
	key := fmt.Sprintf("%s|%s|%s|%d|%d|%s", e.Account, e.Kind, e.Symbol, e.Timestamp.UnixNano(), e.Count, e.Total)
	return uuid.NewSHA1(messageNamespace, []byte(key)).String()
}
