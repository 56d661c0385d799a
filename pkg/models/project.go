package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProjectStatus is the lifecycle stage of a project
type ProjectStatus string

const (
	ProjectStatusDraft        ProjectStatus = "draft"
	ProjectStatusSubmitted    ProjectStatus = "submitted"
	ProjectStatusVerified     ProjectStatus = "verified"
	ProjectStatusFinancing    ProjectStatus = "financing"
	ProjectStatusEndedSuccess ProjectStatus = "ended_success"
	ProjectStatusEndedFailed  ProjectStatus = "ended_failed"
	ProjectStatusRejected     ProjectStatus = "rejected"
)

// ProjectStatuses lists every valid status in lifecycle order.
var ProjectStatuses = []ProjectStatus{
	ProjectStatusDraft,
	ProjectStatusSubmitted,
	ProjectStatusVerified,
	ProjectStatusFinancing,
	ProjectStatusEndedSuccess,
	ProjectStatusEndedFailed,
	ProjectStatusRejected,
}

func (s ProjectStatus) Valid() bool {
	for _, v := range ProjectStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Public reports whether projects in this status are listed anonymously.
func (s ProjectStatus) Public() bool {
	switch s {
	case ProjectStatusVerified, ProjectStatusFinancing, ProjectStatusEndedSuccess, ProjectStatusEndedFailed:
		return true
	}
	return false
}

// Editable reports whether the owner may still change the project.
func (s ProjectStatus) Editable() bool {
	return s == ProjectStatusDraft || s == ProjectStatusRejected
}

// Ended reports whether financing is over.
func (s ProjectStatus) Ended() bool {
	return s == ProjectStatusEndedSuccess || s == ProjectStatusEndedFailed
}

// Project is a crowdfunding campaign owned by a user
type Project struct {
	ID               uint                `json:"id" gorm:"primaryKey;index:ix_projects_id"`
	OwnerID          uint                `json:"owner_id" gorm:"not null;index:ix_projects_owner_id"`
	Owner            *User               `json:"owner,omitempty" gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Title            string              `json:"title" gorm:"size:255;not null"`
	Slug             string              `json:"slug" gorm:"size:255;not null;uniqueIndex:ix_projects_slug"`
	Description      *string             `json:"description" gorm:"type:text"`
	ShortDescription *string             `json:"short_description" gorm:"size:500"`
	FundingGoal      decimal.NullDecimal `json:"funding_goal" gorm:"type:numeric(12,2)"`
	FundingCurrent   decimal.Decimal     `json:"funding_current" gorm:"type:numeric(12,2);not null;default:0"`
	Status           ProjectStatus       `json:"status" gorm:"size:50;not null;default:draft;index:ix_projects_status"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	SubmittedAt      *time.Time          `json:"submitted_at"`
	VerifiedAt       *time.Time          `json:"verified_at"`
	FinancingStart   *time.Time          `json:"financing_start"`
	FinancingEnd     *time.Time          `json:"financing_end"`
	ImageURL         *string             `json:"image_url" gorm:"size:500"`
	VideoURL         *string             `json:"video_url" gorm:"size:500"`
}

func (Project) TableName() string { return "projects" }

// Progress is the funded percentage, capped at 100 and rounded half away from zero.
func (p *Project) Progress() int {
	if !p.FundingGoal.Valid || !p.FundingGoal.Decimal.IsPositive() {
		return 0
	}
	pct := p.FundingCurrent.Div(p.FundingGoal.Decimal).Mul(decimal.NewFromInt(100)).Round(0)
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return 100
	}
	if pct.IsNegative() {
		return 0
	}
	return int(pct.IntPart())
}

// ProjectCreate is the owner's creation payload
type ProjectCreate struct {
	Title            string           `json:"title" validate:"required,min=1,max=255"`
	Slug             *string          `json:"slug" validate:"omitempty,max=255,slug"`
	Description      *string          `json:"description" validate:"omitempty,max=20000"`
	ShortDescription *string          `json:"short_description" validate:"omitempty,max=500"`
	FundingGoal      *decimal.Decimal `json:"funding_goal" validate:"omitempty,money"`
	ImageURL         *string          `json:"image_url" validate:"omitempty,max=500,http_url"`
	VideoURL         *string          `json:"video_url" validate:"omitempty,max=500,http_url"`
}

// ProjectUpdate is the owner's partial update payload
type ProjectUpdate struct {
	Title            *string          `json:"title" validate:"omitempty,min=1,max=255"`
	Slug             *string          `json:"slug" validate:"omitempty,max=255,slug"`
	Description      *string          `json:"description" validate:"omitempty,max=20000"`
	ShortDescription *string          `json:"short_description" validate:"omitempty,max=500"`
	FundingGoal      *decimal.Decimal `json:"funding_goal" validate:"omitempty,money"`
	ImageURL         *string          `json:"image_url" validate:"omitempty,max=500,http_url"`
	VideoURL         *string          `json:"video_url" validate:"omitempty,max=500,http_url"`
}

// AdminProjectUpdate extends the owner update with lifecycle control
type AdminProjectUpdate struct {
	ProjectUpdate
	Status         *ProjectStatus   `json:"status" validate:"omitempty,project_status"`
	FundingCurrent *decimal.Decimal `json:"funding_current" validate:"omitempty,money_nonneg"`
	FinancingStart *time.Time       `json:"financing_start"`
	FinancingEnd   *time.Time       `json:"financing_end"`
}

// ContributionRequest pledges an amount to a financing project
type ContributionRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"money"`
}

// ProjectOwner is the public view of a project's owner
type ProjectOwner struct {
	ID       uint    `json:"id"`
	FullName *string `json:"full_name"`
	Email    string  `json:"email"`
}

// ProjectResponse is the API view of a project
type ProjectResponse struct {
	ID               uint                `json:"id"`
	OwnerID          uint                `json:"owner_id"`
	Owner            *ProjectOwner       `json:"owner,omitempty"`
	Title            string              `json:"title"`
	Slug             string              `json:"slug"`
	Description      *string             `json:"description"`
	ShortDescription *string             `json:"short_description"`
	FundingGoal      decimal.NullDecimal `json:"funding_goal"`
	FundingCurrent   decimal.Decimal     `json:"funding_current"`
	Progress         int                 `json:"progress"`
	Status           ProjectStatus       `json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	SubmittedAt      *time.Time          `json:"submitted_at"`
	VerifiedAt       *time.Time          `json:"verified_at"`
	FinancingStart   *time.Time          `json:"financing_start"`
	FinancingEnd     *time.Time          `json:"financing_end"`
	ImageURL         *string             `json:"image_url"`
	VideoURL         *string             `json:"video_url"`
}

func NewProjectResponse(p *Project) ProjectResponse {
	resp := ProjectResponse{
		ID:               p.ID,
		OwnerID:          p.OwnerID,
		Title:            p.Title,
		Slug:             p.Slug,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		FundingGoal:      p.FundingGoal,
		FundingCurrent:   p.FundingCurrent,
		Progress:         p.Progress(),
		Status:           p.Status,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		SubmittedAt:      p.SubmittedAt,
		VerifiedAt:       p.VerifiedAt,
		FinancingStart:   p.FinancingStart,
		FinancingEnd:     p.FinancingEnd,
		ImageURL:         p.ImageURL,
		VideoURL:         p.VideoURL,
	}
	if p.Owner != nil {
		resp.Owner = &ProjectOwner{ID: p.Owner.ID, FullName: p.Owner.FullName, Email: p.Owner.Email}
	}
	return resp
}

// ProjectListResponse is a page of projects
type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
	Total    int64             `json:"total"`
}

func NewProjectListResponse(projects []Project, total int64) ProjectListResponse {
	out := ProjectListResponse{Projects: make([]ProjectResponse, 0, len(projects)), Total: total}
	for i := range projects {
		out.Projects = append(out.Projects, NewProjectResponse(&projects[i]))
	}
	return out
}

// SlugSuggestion is a free slug for a title. Available is false when the
// plain title slug was taken and a numeric suffix was added.
type SlugSuggestion struct {
	Slug      string `json:"slug"`
	Available bool   `json:"available"`
}

// ProjectFilter narrows project listings
type ProjectFilter struct {
	Status  *ProjectStatus
	OwnerID *uint
	Search  string
	Limit   int
	Offset  int
}
