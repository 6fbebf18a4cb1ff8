package webhook

import (
	"context"
	"log"
	"sync"

	"github.com/rookmemory/rook/internal/events"
)

// Manager owns a set of webhook registrations and delivers every bus event
// to each matching one concurrently, adapted from a WebhookManager
// (webhook.rs) design.
type Manager struct {
	mu        sync.RWMutex
	deliverer map[string]*Delivery
	bus       *events.Bus
	sub       *events.Subscription
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewManager builds a Manager bound to bus. Call Start to begin
// delivering events.
func NewManager(bus *events.Bus) *Manager {
	return &Manager{
		deliverer: make(map[string]*Delivery),
		bus:       bus,
	}
}

// AddWebhook registers a new webhook delivery target.
func (m *Manager) AddWebhook(config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliverer[config.ID] = NewDelivery(config)
}

// RemoveWebhook unregisters a webhook by ID.
func (m *Manager) RemoveWebhook(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deliverer, id)
}

// ListWebhooks returns the Config of every registered webhook.
func (m *Manager) ListWebhooks() []Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	configs := make([]Config, 0, len(m.deliverer))
	for _, d := range m.deliverer {
		configs = append(configs, d.Config())
	}
	return configs
}

// Start begins consuming bus events on a background goroutine, delivering
// each to every registered webhook concurrently. Call Stop to shut down.
func (m *Manager) Start() {
	m.sub = m.bus.Subscribe()
	m.stop = make(chan struct{})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case event, ok := <-m.sub.Events():
				if !ok {
					return
				}
				m.deliverToAll(event)
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Manager) deliverToAll(event events.Event) {
	m.mu.RLock()
	targets := make([]*Delivery, 0, len(m.deliverer))
	for _, d := range m.deliverer {
		targets = append(targets, d)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, d := range targets {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Deliver(context.Background(), event); err != nil {
				log.Printf("webhook: delivery to %s failed: %v", d.Config().URL, err)
			}
		}()
	}
	wg.Wait()
}

// Stop halts event consumption and unsubscribes from the bus.
func (m *Manager) Stop() {
	if m.stop != nil {
		close(m.stop)
	}
	if m.sub != nil {
		m.sub.Unsubscribe()
	}
	m.wg.Wait()
}
