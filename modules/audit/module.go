// Package audit records stock movements, low-stock alerts and price history.
// It only observes committed events from other modules; nothing it does can
// fail the operation that produced them.
package audit

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/unitygrave/cardshop/modules/audit/application"
	"github.com/unitygrave/cardshop/modules/audit/domain"
	httphandler "github.com/unitygrave/cardshop/modules/audit/infrastructure/http"
	"github.com/unitygrave/cardshop/modules/shared/events"
)

// Module is the public API for the audit bounded context.
type Module interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Config holds the module configuration.
type Config struct {
	Store           domain.Store
	EventSubscriber events.Subscriber
	Logger          *slog.Logger
}

type module struct {
	store domain.Store
}

// New creates the audit module and subscribes it to inventory and catalog events.
func New(cfg Config) (Module, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := application.NewRecorder(cfg.Store, logger.With("module", "audit"))
	if err := recorder.Subscribe(cfg.EventSubscriber); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	return &module{store: cfg.Store}, nil
}

func (m *module) RegisterRoutes(mux *http.ServeMux) {
	httphandler.RegisterRoutes(mux, m.store)
}
