package dto

import (
	"encoding/json"
	"time"

	"merchhub/internal/entity"
)

// NullableString records whether a JSON key was present. Present with a null
// value means clear; absent means keep.
type NullableString struct {
	Set   bool
	Value *string
}

// NewNullableString returns a present, non-null value.
func NewNullableString(v string) NullableString {
	return NullableString{Set: true, Value: &v}
}

func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// UpdateProfileRequest is a partial update: absent keys are left unchanged
// and explicit nulls clear the field. The JSON-typed fields are kept raw so
// that a wrong shape is reported as a field error rather than a decode
// failure.
type UpdateProfileRequest struct {
	FullName    NullableString  `json:"full_name" validate:"omitempty,max=255"`
	Email       NullableString  `json:"email" validate:"omitempty,email,max=255"`
	Bio         NullableString  `json:"bio" validate:"omitempty,max=500"`
	PhoneNumber NullableString  `json:"phone_number" validate:"omitempty,max=20"`
	Address     NullableString  `json:"address" validate:"omitempty,max=255"`
	Preferences json.RawMessage `json:"preferences"`
	BirthDate   NullableString  `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Gender      NullableString  `json:"gender" validate:"omitempty,max=32"`
	Occupation  NullableString  `json:"occupation" validate:"omitempty,max=255"`
	Interests   json.RawMessage `json:"interests"`
	SocialLinks json.RawMessage `json:"social_links"`
}

type UpdatePreferencesRequest struct {
	Preferences json.RawMessage `json:"preferences"`
}

type AvatarResponse struct {
	AvatarURL string `json:"avatar_url"`
}

type ProfileResponse struct {
	ID          int64             `json:"id,omitempty"`
	AccountID   string            `json:"user_id"`
	AvatarURL   *string           `json:"avatar_url"`
	FullName    *string           `json:"full_name"`
	Email       *string           `json:"email"`
	Bio         *string           `json:"bio"`
	PhoneNumber *string           `json:"phone_number"`
	Address     *string           `json:"address"`
	Preferences map[string]any    `json:"preferences"`
	BirthDate   *string           `json:"birth_date"`
	Gender      *string           `json:"gender"`
	Occupation  *string           `json:"occupation"`
	Interests   []string          `json:"interests"`
	SocialLinks map[string]string `json:"social_links"`
	CreatedAt   *time.Time        `json:"created_at,omitempty"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
}

// ProfileResponseFromEntity maps a profile; resolveURL turns the stored avatar
// path into a public URL.
func ProfileResponseFromEntity(p *entity.Profile, resolveURL func(string) string) *ProfileResponse {
	if p == nil {
		return nil
	}
	resp := &ProfileResponse{
		ID:          p.ID,
		AccountID:   p.AccountID.String(),
		FullName:    p.FullName,
		Email:       p.Email,
		Bio:         p.Bio,
		PhoneNumber: p.PhoneNumber,
		Address:     p.Address,
		Preferences: p.Preferences,
		BirthDate:   p.BirthDate,
		Gender:      p.Gender,
		Occupation:  p.Occupation,
		Interests:   p.Interests,
		SocialLinks: p.SocialLinks.Data(),
	}
	if p.AvatarPath != nil && resolveURL != nil {
		url := resolveURL(*p.AvatarPath)
		resp.AvatarURL = &url
	}
	if p.ID != 0 {
		created, updated := p.CreatedAt, p.UpdatedAt
		resp.CreatedAt, resp.UpdatedAt = &created, &updated
	}
	return resp
}
