package dto

import (
	"time"

	"merchhub/internal/entity"
)

type RegisterRequest struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,min=6,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation"`
	DepartmentID         int64  `json:"department_id" validate:"required,gt=0"`
	Role                 string `json:"role" validate:"required,oneof=student admin superadmin"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type AuthResponse struct {
	User          SessionData `json:"user"`
	Token         string      `json:"token"`
	Message       string      `json:"message,omitempty"`
	EmailVerified *bool       `json:"email_verified,omitempty"`
}

type EmailNotVerifiedResponse struct {
	Message       string `json:"message"`
	EmailVerified bool   `json:"email_verified"`
}

type DepartmentResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// SessionData is the account snapshot the mobile client keeps for the session.
type SessionData struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Email           string              `json:"email"`
	Role            string              `json:"role"`
	DepartmentID    int64               `json:"department_id"`
	Department      *DepartmentResponse `json:"department,omitempty"`
	EmailVerified   bool                `json:"email_verified"`
	EmailVerifiedAt *time.Time          `json:"email_verified_at,omitempty"`
	Profile         *ProfileResponse    `json:"profile,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

type AccountResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	DepartmentID    int64      `json:"department_id"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func DepartmentResponseFromEntity(d *entity.Department) *DepartmentResponse {
	if d == nil {
		return nil
	}
	return &DepartmentResponse{ID: d.ID, Name: d.Name, Code: d.Code}
}

func DepartmentResponsesFromEntities(departments []entity.Department) []DepartmentResponse {
	responses := make([]DepartmentResponse, 0, len(departments))
	for i := range departments {
		responses = append(responses, *DepartmentResponseFromEntity(&departments[i]))
	}
	return responses
}

func SessionDataFromEntity(account *entity.Account, profile *ProfileResponse) SessionData {
	return SessionData{
		ID:              account.ID.String(),
		Name:            account.Name,
		Email:           account.Email,
		Role:            string(account.Role),
		DepartmentID:    account.DepartmentID,
		Department:      DepartmentResponseFromEntity(account.Department),
		EmailVerified:   account.IsVerified(),
		EmailVerifiedAt: account.EmailVerifiedAt,
		Profile:         profile,
		CreatedAt:       account.CreatedAt,
	}
}

func AccountResponseFromEntity(account *entity.Account) AccountResponse {
	return AccountResponse{
		ID:              account.ID.String(),
		Name:            account.Name,
		Email:           account.Email,
		Role:            string(account.Role),
		DepartmentID:    account.DepartmentID,
		EmailVerifiedAt: account.EmailVerifiedAt,
		CreatedAt:       account.CreatedAt,
		UpdatedAt:       account.UpdatedAt,
	}
}

func AccountResponsesFromEntities(accounts []entity.Account) []AccountResponse {
	responses := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, AccountResponseFromEntity(&accounts[i]))
	}
	return responses
}
