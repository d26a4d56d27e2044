package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lyp1noff/champion-arena-sub000/models"
	"github.com/lyp1noff/champion-arena-sub000/repositories"
	"github.com/lyp1noff/champion-arena-sub000/storage"
)

// ArchiveService выгружает снимок завершённой сетки в объектное
// хранилище. Снимок — тот же JSON, что отдаёт API, плюс момент
// выгрузки; живые данные он не заменяет.
type ArchiveService interface {
	ArchiveBracket(ctx context.Context, bracketID int) error
}

type archiveService struct {
	bracketRepo repositories.BracketRepository
	uploader    storage.FileUploader
	logger      *slog.Logger
}

func NewArchiveService(bracketRepo repositories.BracketRepository, uploader storage.FileUploader, logger *slog.Logger) ArchiveService {
	return &archiveService{bracketRepo: bracketRepo, uploader: uploader, logger: logger}
}

type bracketArchive struct {
	ArchivedAt time.Time       `json:"archived_at"`
	Bracket    *models.Bracket `json:"bracket"`
}

func (s *archiveService) ArchiveBracket(ctx context.Context, bracketID int) error {
	bracket, err := s.bracketRepo.GetByID(ctx, nil, bracketID)
	if err != nil {
		return err
	}
	participants, err := s.bracketRepo.ListParticipants(ctx, nil, bracketID)
	if err != nil {
		return err
	}
	slots, err := s.bracketRepo.ListSlots(ctx, nil, bracketID)
	if err != nil {
		return err
	}
	bracket.Participants = make([]models.BracketParticipant, 0, len(participants))
	for _, p := range participants {
		bracket.Participants = append(bracket.Participants, *p)
	}
	bracket.Matches = make([]models.BracketMatch, 0, len(slots))
	for _, slot := range slots {
		bracket.Matches = append(bracket.Matches, *slot)
	}

	payload, err := json.Marshal(bracketArchive{
		ArchivedAt: time.Now().UTC(),
		Bracket:    bracket,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal bracket %d archive: %w", bracketID, err)
	}

	key := fmt.Sprintf("brackets/%d/%d.json", bracket.TournamentID, bracket.ID)
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}

	s.logger.Info("bracket archived",
		slog.Int("bracket_id", bracket.ID),
		slog.String("key", result.Key),
		slog.String("location", result.Location))
	return nil
}
