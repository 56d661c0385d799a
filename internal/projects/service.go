package projects

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/crowdfund/internal/database"
	"github.com/Aidin1998/crowdfund/internal/events"
	"github.com/Aidin1998/crowdfund/pkg/errors"
	"github.com/Aidin1998/crowdfund/pkg/metrics"
	"github.com/Aidin1998/crowdfund/pkg/models"
	"github.com/Aidin1998/crowdfund/pkg/validation"
)

// matches projects.title varchar(255)
const maxTitleLen = 255

// ProjectService defines owner, public and admin operations on projects.
type ProjectService interface {
	Create(ctx context.Context, ownerID uint, req *models.ProjectCreate) (*models.Project, error)
	Get(ctx context.Context, viewer *models.User, id uint) (*models.Project, error)
	GetBySlug(ctx context.Context, slug string) (*models.Project, error)
	ListPublic(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int64, error)
	ListByOwner(ctx context.Context, ownerID uint, filter models.ProjectFilter) ([]models.Project, int64, error)
	Update(ctx context.Context, ownerID, id uint, req *models.ProjectUpdate) (*models.Project, error)
	Delete(ctx context.Context, ownerID, id uint) error
	Submit(ctx context.Context, ownerID, id uint) (*models.Project, error)
	SuggestSlug(ctx context.Context, title string) (*models.SlugSuggestion, error)
	Contribute(ctx context.Context, userID, id uint, req *models.ContributionRequest) (*models.Project, error)

	AdminList(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int64, error)
	AdminGet(ctx context.Context, id uint) (*models.Project, error)
	AdminUpdate(ctx context.Context, actorID, id uint, req *models.AdminProjectUpdate) (*models.Project, error)
	AdminDelete(ctx context.Context, actorID, id uint) error
}

// Service implements ProjectService
type Service struct {
	logger    *zap.Logger
	db        *gorm.DB
	validator *validation.Validator
	emitter   *events.Emitter
	now       func() time.Time
}

// Option customises a Service
type Option func(*Service)

func WithEmitter(e *events.Emitter) Option  { return func(s *Service) { s.emitter = e } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a new project service
func NewService(logger *zap.Logger, db *gorm.DB, v *validation.Validator, opts ...Option) *Service {
	svc := &Service{logger: logger, db: db, validator: v, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

var _ ProjectService = (*Service)(nil)

var publicStatuses = func() []models.ProjectStatus {
	var out []models.ProjectStatus
	for _, st := range models.ProjectStatuses {
		if st.Public() {
			out = append(out, st)
		}
	}
	return out
}()

func subject(id uint) string {
	return "project:" + strconv.FormatUint(uint64(id), 10)
}

func (s *Service) load(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).Preload("Owner").First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound.Explain("Project %d not found", id)
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return &project, nil
}

// loadOwned loads a project and checks that ownerID owns it.
func (s *Service) loadOwned(ctx context.Context, ownerID, id uint) (*models.Project, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != ownerID {
		return nil, errors.Forbidden.Explain("Not the owner of project %d", id)
	}
	return project, nil
}

// Create stores a draft project and marks its owner as a starter.
func (s *Service) Create(ctx context.Context, ownerID uint, req *models.ProjectCreate) (*models.Project, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	title, err := s.cleanTitle(req.Title)
	if err != nil {
		return nil, err
	}

	var slug string
	if req.Slug != nil && *req.Slug != "" {
		slug = *req.Slug
	} else {
		suggestion, err := s.SuggestSlug(ctx, title)
		if err != nil {
			return nil, err
		}
		slug = suggestion.Slug
	}

	project := &models.Project{
		OwnerID:          ownerID,
		Title:            title,
		Slug:             slug,
		Description:      s.sanitizeHTML(req.Description),
		ShortDescription: s.sanitizeText(req.ShortDescription),
		FundingCurrent:   decimal.Zero,
		Status:           models.ProjectStatusDraft,
		ImageURL:         req.ImageURL,
		VideoURL:         req.VideoURL,
	}
	if req.FundingGoal != nil {
		project.FundingGoal = decimal.NewNullDecimal(*req.FundingGoal)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ? AND is_starter = ?", ownerID, false).
			Update("is_starter", true).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errors.Conflict.Explain("Slug %q is already taken", slug)
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	metrics.ProjectTransitions.WithLabelValues(string(models.ProjectStatusDraft)).Inc()
	s.logger.Info("Project created", zap.Uint("project_id", project.ID), zap.Uint("owner_id", ownerID), zap.String("slug", slug))
	s.emitter.Emit(ctx, events.ProjectCreated, subject(project.ID), map[string]any{
		"owner_id": ownerID,
		"slug":     slug,
	})
	return s.load(ctx, project.ID)
}

// Get returns a project to its owner or an admin in any status, and to
// everyone else only once it is public.
func (s *Service) Get(ctx context.Context, viewer *models.User, id uint) (*models.Project, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Status.Public() {
		return project, nil
	}
	if viewer != nil && (viewer.IsAdmin || viewer.ID == project.OwnerID) {
		return project, nil
	}
	return nil, errors.NotFound.Explain("Project %d not found", id)
}

// GetBySlug returns a public project by its slug
func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).Preload("Owner").
		Where("slug = ? AND status IN ?", slug, publicStatuses).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound.Explain("Project %q not found", slug)
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return &project, nil
}

func (s *Service) list(ctx context.Context, query *gorm.DB, filter models.ProjectFilter) ([]models.Project, int64, error) {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR slug LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}
	var projects []models.Project
	err := query.Preload("Owner").Order("created_at DESC, id DESC").
		Scopes(database.Paginate(filter.Limit, filter.Offset)).
		Find(&projects).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, total, nil
}

// ListPublic lists projects visible to anonymous visitors, newest first.
func (s *Service) ListPublic(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int64, error) {
	if filter.Status != nil && !filter.Status.Public() {
		return nil, 0, errors.Invalid.WithField("public_status", "status", "status is not publicly listed")
	}
	query := s.db.WithContext(ctx).Model(&models.Project{}).Where("status IN ?", publicStatuses)
	return s.list(ctx, query, filter)
}

// ListByOwner lists every project of ownerID regardless of status.
func (s *Service) ListByOwner(ctx context.Context, ownerID uint, filter models.ProjectFilter) ([]models.Project, int64, error) {
	filter.OwnerID = &ownerID
	return s.list(ctx, s.db.WithContext(ctx).Model(&models.Project{}), filter)
}

// Update applies an owner's changes while the project is a draft or rejected.
func (s *Service) Update(ctx context.Context, ownerID, id uint, req *models.ProjectUpdate) (*models.Project, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	project, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !project.Status.Editable() {
		return nil, errors.Forbidden.Explain("Project cannot be edited in status %s", project.Status)
	}

	updates, err := s.contentUpdates(project, req)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, project, updates)
}

// Delete removes a draft or rejected project owned by ownerID.
func (s *Service) Delete(ctx context.Context, ownerID, id uint) error {
	project, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if !project.Status.Editable() {
		return errors.Forbidden.Explain("Project cannot be deleted in status %s", project.Status)
	}
	return s.remove(ctx, ownerID, project)
}

// Submit sends a draft or rejected project to review.
func (s *Service) Submit(ctx context.Context, ownerID, id uint) (*models.Project, error) {
	project, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !project.Status.Editable() {
		return nil, errors.Conflict.Explain("Project cannot be submitted from status %s", project.Status)
	}

	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND status = ?", project.ID, project.Status).
		Updates(map[string]interface{}{
			"status":       models.ProjectStatusSubmitted,
			"submitted_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to submit project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.Conflict.Explain("Project status changed concurrently")
	}

	s.statusChanged(ctx, project.ID, project.Status, models.ProjectStatusSubmitted, ownerID)
	return s.load(ctx, project.ID)
}

// Contribute adds amount to the funding of a project that is financing.
func (s *Service) Contribute(ctx context.Context, userID, id uint, req *models.ContributionRequest) (*models.Project, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND status = ?", id, models.ProjectStatusFinancing).
		Updates(map[string]interface{}{
			"funding_current": gorm.Expr("funding_current + ?", req.Amount),
			"updated_at":      s.now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to record contribution: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.Conflict.Explain("Project %d is not accepting contributions", id)
	}

	metrics.ContributionsTotal.Inc()
	s.logger.Info("Contribution recorded",
		zap.Uint("project_id", id),
		zap.Uint("user_id", userID),
		zap.String("amount", req.Amount.StringFixed(2)))
	s.emitter.Emit(ctx, events.ContributionRecorded, subject(id), map[string]any{
		"user_id": userID,
		"amount":  req.Amount.StringFixed(2),
	})
	return s.load(ctx, id)
}

// AdminList lists projects in any status
func (s *Service) AdminList(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int64, error) {
	return s.list(ctx, s.db.WithContext(ctx).Model(&models.Project{}), filter)
}

func (s *Service) AdminGet(ctx context.Context, id uint) (*models.Project, error) {
	return s.load(ctx, id)
}

// AdminUpdate edits any field of a project and moves it to any status.
// Entering verified, financing or an ended status stamps the matching
// timestamp unless one is supplied or already set.
func (s *Service) AdminUpdate(ctx context.Context, actorID, id uint, req *models.AdminProjectUpdate) (*models.Project, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates, err := s.contentUpdates(project, &req.ProjectUpdate)
	if err != nil {
		return nil, err
	}
	if req.FundingCurrent != nil {
		updates["funding_current"] = *req.FundingCurrent
	}
	if req.FinancingStart != nil {
		updates["financing_start"] = req.FinancingStart.UTC()
	}
	if req.FinancingEnd != nil {
		updates["financing_end"] = req.FinancingEnd.UTC()
	}

	previous := project.Status
	if req.Status != nil && *req.Status != project.Status {
		s.stampStatus(updates, project, *req.Status)
	}

	updated, err := s.save(ctx, project, updates)
	if err != nil {
		return nil, err
	}
	if updated.Status != previous {
		s.statusChanged(ctx, id, previous, updated.Status, actorID)
	}
	return updated, nil
}

// AdminDelete removes a project in any status
func (s *Service) AdminDelete(ctx context.Context, actorID, id uint) error {
	project, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, actorID, project)
}

func (s *Service) stampStatus(updates map[string]interface{}, project *models.Project, next models.ProjectStatus) {
	now := s.now().UTC()
	updates["status"] = next

	setIfUnset := func(column string, current *time.Time) {
		if _, given := updates[column]; given || current != nil {
			return
		}
		updates[column] = now
	}
	switch next {
	case models.ProjectStatusSubmitted:
		setIfUnset("submitted_at", project.SubmittedAt)
	case models.ProjectStatusVerified:
		setIfUnset("verified_at", project.VerifiedAt)
	case models.ProjectStatusFinancing:
		setIfUnset("financing_start", project.FinancingStart)
	case models.ProjectStatusEndedSuccess, models.ProjectStatusEndedFailed:
		setIfUnset("financing_end", project.FinancingEnd)
	}
}

// contentUpdates turns the editable fields of req into column updates,
// sanitising free text on the way.
func (s *Service) contentUpdates(project *models.Project, req *models.ProjectUpdate) (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if req.Title != nil {
		title, err := s.cleanTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		updates["title"] = title
	}
	if req.Slug != nil && *req.Slug != project.Slug {
		updates["slug"] = *req.Slug
	}
	if req.Description != nil {
		updates["description"] = s.sanitizeHTML(req.Description)
	}
	if req.ShortDescription != nil {
		updates["short_description"] = s.sanitizeText(req.ShortDescription)
	}
	if req.FundingGoal != nil {
		updates["funding_goal"] = decimal.NewNullDecimal(*req.FundingGoal)
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.VideoURL != nil {
		updates["video_url"] = *req.VideoURL
	}
	return updates, nil
}

func (s *Service) save(ctx context.Context, project *models.Project, updates map[string]interface{}) (*models.Project, error) {
	if len(updates) == 0 {
		return project, nil
	}
	err := s.db.WithContext(ctx).Model(&models.Project{ID: project.ID}).Updates(updates).Error
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errors.Conflict.Explain("Slug %q is already taken", updates["slug"])
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return s.load(ctx, project.ID)
}

func (s *Service) remove(ctx context.Context, actorID uint, project *models.Project) error {
	if err := s.db.WithContext(ctx).Delete(&models.Project{}, project.ID).Error; err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	s.logger.Info("Project deleted", zap.Uint("project_id", project.ID), zap.Uint("actor_id", actorID))
	s.emitter.Emit(ctx, events.ProjectDeleted, subject(project.ID), map[string]any{
		"actor_id": actorID,
		"slug":     project.Slug,
	})
	return nil
}

func (s *Service) statusChanged(ctx context.Context, id uint, from, to models.ProjectStatus, actorID uint) {
	metrics.ProjectTransitions.WithLabelValues(string(to)).Inc()
	s.logger.Info("Project status changed",
		zap.Uint("project_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Uint("actor_id", actorID))
	s.emitter.Emit(ctx, events.ProjectStatusChanged, subject(id), map[string]any{
		"from":     string(from),
		"to":       string(to),
		"actor_id": actorID,
	})
}

// cleanTitle strips markup from a title and re-checks the column limits on
// what will be stored.
func (s *Service) cleanTitle(raw string) (string, error) {
	title := s.validator.SanitizeText(raw)
	if title == "" {
		return "", errors.Invalid.WithField("required", "title", "title must contain text")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", errors.Invalid.WithField("max", "title", fmt.Sprintf("title must be at most %d characters long", maxTitleLen))
	}
	return title, nil
}

func (s *Service) sanitizeText(v *string) *string {
	if v == nil {
		return nil
	}
	cleaned := s.validator.SanitizeText(*v)
	return &cleaned
}

func (s *Service) sanitizeHTML(v *string) *string {
	if v == nil {
		return nil
	}
	cleaned := s.validator.SanitizeHTML(*v)
	return &cleaned
}
