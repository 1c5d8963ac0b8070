// Package gateway wraps the external checkout client behind a
// lazily-initialized adapter. Callers check Ready before handing control to
// the checkout.
package gateway

import (
	"sync"

	"github.com/sparkmatch/sparkmatch/internal/config"
	paymentdomain "github.com/sparkmatch/sparkmatch/internal/payment/domain"
	"go.uber.org/zap"
)

type Adapter struct {
	keyID     string
	keySecret string
	log       *zap.Logger

	once  sync.Once
	ready bool
}

func NewAdapter(cfg config.Config, log *zap.Logger) *Adapter {
	return &Adapter{
		keyID:     cfg.Gateway.KeyID,
		keySecret: cfg.Gateway.KeySecret,
		log:       log.Named("payment.gateway"),
	}
}

// Ready initializes the adapter on first use and reports whether the
// checkout client can be used.
func (a *Adapter) Ready() bool {
	a.once.Do(func() {
		if a.keyID == "" || a.keySecret == "" {
			a.log.Warn("payment gateway credentials missing, checkout disabled")
			return
		}
		a.ready = true
		a.log.Info("payment gateway adapter initialized")
	})
	return a.ready
}

// EnsureReady returns ErrGatewayNotReady when the checkout client is not
// usable.
func (a *Adapter) EnsureReady() error {
	if !a.Ready() {
		return paymentdomain.ErrGatewayNotReady
	}
	return nil
}

// KeyID is the public key identifier embedded in the checkout payload.
func (a *Adapter) KeyID() string {
	return a.keyID
}
