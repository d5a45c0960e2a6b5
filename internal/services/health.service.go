package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/outreach-engine/pkg/pg"
	"github.com/nimasrn/outreach-engine/pkg/redis"
)

const healthTimeout = 2 * time.Second

type HealthService struct {
	db    *pg.DB
	redis redis.RedisAdapter
}

func NewHealthService(db *pg.DB, adapter redis.RedisAdapter) *HealthService {
	return &HealthService{db: db, redis: adapter}
}

// Get pings the database and redis.
func (s *HealthService) Get() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	if s.db != nil {
		sqlDB, err := s.db.Read(ctx).DB()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Client().Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
