package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/norberto-e-888/pos-app/pkg/broker"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

type pinger func(context.Context) error

type messageConsumer interface {
	Run(ctx context.Context, sub broker.Subscriber, subscription string) error
}

// Subscription pairs a consumer with the subscription it drains.
type Subscription struct {
	Name     string
	Consumer messageConsumer
}

type ServiceParams struct {
	Logger        *logger.Logger
	Subscriber    broker.Subscriber
	Subscriptions []Subscription
	// Readiness checks run before any consumer starts; nil entries are skipped.
	Readiness map[string]pinger
}

// Service runs every consumer of the worker process and stops all of them when one fails.
type Service struct {
	logg          *logger.Logger
	subscriber    broker.Subscriber
	subscriptions []Subscription
	readiness     map[string]pinger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Subscriber == nil {
		return nil, errors.New("broker subscriber is required")
	}
	if len(params.Subscriptions) == 0 {
		return nil, errors.New("at least one subscription is required")
	}
	for _, sub := range params.Subscriptions {
		if sub.Name == "" || sub.Consumer == nil {
			return nil, errors.New("subscription name and consumer are required")
		}
	}
	return &Service{
		logg:          params.Logger,
		subscriber:    params.Subscriber,
		subscriptions: params.Subscriptions,
		readiness:     params.Readiness,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, ping := range s.readiness {
		if ping == nil {
			continue
		}
		if err := pingDependency(ctx, s.logg, name, ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, sub := range s.subscriptions {
		group.Go(func() error {
			err := sub.Consumer.Run(groupCtx, s.subscriber, sub.Name)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(s.logg.WithField(groupCtx, "subscription", sub.Name), "consumer stopped unexpectedly", err)
			}
			return err
		})
	}

	err := group.Wait()
	if ctx.Err() != nil {
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	}
	return err
}
