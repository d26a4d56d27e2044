package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/lyp1noff/champion-arena-sub000/repositories"
	"github.com/lyp1noff/champion-arena-sub000/utils"
)

// AuthService регистрирует татами-станции и проверяет их ключи.
// Ключ выдается один раз при регистрации, дальше станция
// обменивает его на JWT через Login.
type AuthService interface {
	RegisterStation(ctx context.Context, name string) (*models.EdgeStation, string, error)
	Authenticate(ctx context.Context, edgeID, key string) (*models.EdgeStation, error)
}

type authService struct {
	syncRepo repositories.SyncRepository
	logger   *slog.Logger
}

func NewAuthService(syncRepo repositories.SyncRepository, logger *slog.Logger) AuthService {
	return &authService{syncRepo: syncRepo, logger: logger}
}

func (s *authService) RegisterStation(ctx context.Context, name string) (*models.EdgeStation, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", ErrStationNameRequired
	}

	key, err := utils.GenerateStationKey()
	if err != nil {
		return nil, "", err
	}
	hash, err := utils.HashStationKey(key)
	if err != nil {
		return nil, "", err
	}

	station := &models.EdgeStation{
		EdgeID:  uuid.NewString(),
		Name:    name,
		KeyHash: hash,
	}
	if err := s.syncRepo.CreateStation(ctx, nil, station); err != nil {
		return nil, "", err
	}

	s.logger.Info("edge station registered",
		slog.String("edge_id", station.EdgeID), slog.String("name", station.Name))
	return station, key, nil
}

func (s *authService) Authenticate(ctx context.Context, edgeID, key string) (*models.EdgeStation, error) {
	station, err := s.syncRepo.GetStation(ctx, nil, edgeID)
	if err != nil {
		if errors.Is(err, repositories.ErrEdgeStationNotFound) {
			return nil, ErrStationInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckStationKey(key, station.KeyHash) {
		return nil, ErrStationInvalidCredentials
	}
	return station, nil
}
