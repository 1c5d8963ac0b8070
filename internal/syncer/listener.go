package syncer

import (
	"context"
	"encoding/json"
	"strconv"

	balancedomain "github.com/sparkmatch/sparkmatch/internal/balance/domain"
	"github.com/sparkmatch/sparkmatch/internal/broadcast"
	"github.com/sparkmatch/sparkmatch/internal/config"
	subscriptiondomain "github.com/sparkmatch/sparkmatch/internal/subscription/domain"
	"github.com/sparkmatch/sparkmatch/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Listener consumes state frames broadcast by sibling contexts and merges
// them into local state. Frames carrying stale timestamps lose against the
// local value, so contexts converge on the newest write.
type Listener struct {
	log             *zap.Logger
	userID          int64
	hub             *broadcast.Hub
	balanceSvc      balancedomain.Service
	subscriptionSvc subscriptiondomain.Service

	sub  *broadcast.Subscription
	done chan struct{}
}

type ListenerParam struct {
	fx.In

	Log             *zap.Logger
	Config          config.Config
	Hub             *broadcast.Hub
	BalanceSvc      balancedomain.Service
	SubscriptionSvc subscriptiondomain.Service
}

func NewListener(p ListenerParam) *Listener {
	return &Listener{
		log:             p.Log.Named("syncer.listener"),
		userID:          p.Config.UserID,
		hub:             p.Hub,
		balanceSvc:      p.BalanceSvc,
		subscriptionSvc: p.SubscriptionSvc,
		done:            make(chan struct{}),
	}
}

func (l *Listener) Start(ctx context.Context) error {
	sub, replay, err := l.hub.Subscribe(strconv.FormatInt(l.userID, 10))
	if err != nil {
		return err
	}
	l.sub = sub

	go func() {
		for _, update := range replay {
			l.apply(update)
		}
		for {
			select {
			case update, ok := <-sub.Updates():
				if !ok {
					return
				}
				l.apply(update)
			case <-l.done:
				return
			}
		}
	}()
	return nil
}

func (l *Listener) Stop(ctx context.Context) error {
	close(l.done)
	if l.sub != nil {
		l.sub.Close()
	}
	return nil
}

func (l *Listener) apply(update broadcast.StateUpdate) {
	ctx := usercontext.WithUserID(context.Background(), l.userID)

	switch update.Key {
	case broadcast.KeyBalance:
		var incoming balancedomain.CreditBalance
		if err := json.Unmarshal(update.Value, &incoming); err != nil {
			l.log.Warn("malformed balance frame", zap.Error(err))
			return
		}
		if err := l.balanceSvc.ApplyUpdate(ctx, incoming); err != nil {
			l.log.Warn("failed to apply balance frame", zap.Error(err))
		}
	case broadcast.KeySubscription:
		var incoming subscriptiondomain.UserSubscription
		if err := json.Unmarshal(update.Value, &incoming); err != nil {
			l.log.Warn("malformed subscription frame", zap.Error(err))
			return
		}
		if err := l.subscriptionSvc.ApplyUpdate(ctx, incoming); err != nil {
			l.log.Warn("failed to apply subscription frame", zap.Error(err))
		}
	}
}
