package catalog

import (
	"context"
	"errors"
	"strings"

	"tabletop-service/internal/model"
	appErr "tabletop-service/pkg/errors"

	"gorm.io/gorm"
)

// Service manages the list of playable game types.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type GameTypeListResult struct {
	Items []model.GameType
	Total int64
}

type MutationParams struct {
	Name        string
	DisplayName string
	Description string
	Status      string
}

func (p *MutationParams) sanitize() {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Description = strings.TrimSpace(p.Description)
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	if p.Status == "" {
		p.Status = "enabled"
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Name
	}
}

// ListEnabled returns the game types players can queue for.
func (s *Service) ListEnabled(ctx context.Context) ([]model.GameType, error) {
	types := make([]model.GameType, 0)
	err := s.db.WithContext(ctx).
		Where("status = ?", "enabled").
		Order("name ASC").
		Find(&types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (s *Service) AdminList(ctx context.Context, page, size int) (*GameTypeListResult, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&model.GameType{}).
		Count(&total).Error; err != nil {
		return nil, err
	}

	var types []model.GameType
	if total > 0 {
		offset := (page - 1) * size
		if err := s.db.WithContext(ctx).
			Model(&model.GameType{}).
			Order("id DESC").
			Limit(size).
			Offset(offset).
			Find(&types).Error; err != nil {
			return nil, err
		}
	}

	return &GameTypeListResult{Items: types, Total: total}, nil
}

func (s *Service) Create(ctx context.Context, params MutationParams) (*model.GameType, error) {
	params.sanitize()
	if params.Name == "" {
		return nil, appErr.ErrGameTypeNotFound
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&model.GameType{}).
		Where("name = ?", params.Name).
		Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, appErr.ErrGameTypeExists
	}

	gameType := model.GameType{
		Name:        params.Name,
		DisplayName: params.DisplayName,
		Description: params.Description,
		Status:      params.Status,
	}
	if err := s.db.WithContext(ctx).Create(&gameType).Error; err != nil {
		return nil, err
	}
	return &gameType, nil
}

func (s *Service) Update(ctx context.Context, id int64, params MutationParams) (*model.GameType, error) {
	params.sanitize()

	updates := map[string]interface{}{
		"display_name": params.DisplayName,
		"description":  params.Description,
		"status":       params.Status,
	}

	res := s.db.WithContext(ctx).Model(&model.GameType{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, appErr.ErrGameTypeNotFound
	}

	var gameType model.GameType
	if err := s.db.WithContext(ctx).First(&gameType, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrGameTypeNotFound
		}
		return nil, err
	}
	return &gameType, nil
}
