package probe

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaProber checks broker reachability by dialing the first reachable
// broker and asking it for the cluster controller.
type KafkaProber struct {
	name    string
	brokers []string
	dialer  *kafka.Dialer
}

// NewKafkaProber creates a prober for a broker address list.
func NewKafkaProber(name string, brokers []string) *KafkaProber {
	return &KafkaProber{
		name:    name,
		brokers: brokers,
		dialer:  &kafka.Dialer{DualStack: true},
	}
}

func (p *KafkaProber) Name() string { return p.name }

func (p *KafkaProber) Probe(ctx context.Context) error {
	var lastErr error
	for _, addr := range p.brokers {
		conn, err := p.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = fmt.Errorf("dial %s: %w", addr, err)
			continue
		}

		_, err = conn.Controller()
		_ = conn.Close()
		if err != nil {
			lastErr = fmt.Errorf("controller lookup via %s: %w", addr, err)
			continue
		}
		return nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no brokers configured")
	}
	return lastErr
}
