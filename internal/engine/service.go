package engine

import (
	"context"
	"fmt"
	"sync"

	"waypoint-server/internal/infrastructure/storage"
	"waypoint-server/internal/network"
	"waypoint-server/pkg/logger"
)

// Service связывает всё, что нужно серверу: хранилище градиентов, мир,
// цикл симуляции и рассылку снимков.
type Service struct {
	Config Config
	World  *World
	Sim    *Simulation
	Hub    *network.Broadcaster
	Store  *storage.GradientStore // nil, если хранилище выключено

	wg sync.WaitGroup
}

// NewService строит мир по конфигу. Мир еще не тикает: см. Start.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var (
		store     *storage.GradientStore
		gradients GradientStore
	)
	if cfg.GradientPath != "" {
		var err error
		store, err = storage.NewGradientStore(cfg.GradientPath, cfg.WorldName)
		if err != nil {
			return nil, err
		}
		gradients = store
	}

	m, err := MapFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	world, err := BuildWorld(cfg, m, gradients)
	if err != nil {
		return nil, err
	}

	hub := network.NewBroadcaster()
	return &Service{
		Config: cfg,
		World:  world,
		Sim:    NewSimulation(world, hub, cfg.TickInterval),
		Hub:    hub,
		Store:  store,
	}, nil
}

// Start запускает цикл симуляции в фоне до отмены ctx
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Sim.Run(ctx)
	}()
}

// Wait ждет завершения цикла после отмены контекста
func (s *Service) Wait() {
	s.wg.Wait()
	logger.Log.WithField("world", s.World.Name).Info("Simulation finished")
}
