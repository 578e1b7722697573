package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"merchhub/internal/dto"
	"merchhub/internal/entity"
	"merchhub/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeUpdate(t *testing.T, body string) dto.UpdateProfileRequest {
	t.Helper()
	var req dto.UpdateProfileRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func TestGetProfileReturnsUnsavedDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := &entity.Account{Name: "Bare", Email: "bare@example.com", Role: entity.AccountRoleStudent, DepartmentID: testDepartmentID}
	require.NoError(t, h.store.Accounts().Create(ctx, account))

	profile, err := h.profiles.GetProfile(ctx, account.ID)
	require.NoError(t, err)
	assert.Zero(t, profile.ID)
	assert.Equal(t, "Bare", *profile.FullName)
	assert.Zero(t, h.store.CountProfiles())

	_, err = h.profiles.GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestUpdateProfileMergesSuppliedFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ana := h.verifiedAccount(t, "ana@example.com")

	req := decodeUpdate(t, `{
		"bio": "Loves hoodies",
		"phone_number": "09171234567",
		"birth_date": "2001-04-12",
		"interests": ["apparel", "stickers"],
		"social_links": {"instagram": "@ana"},
		"preferences": {"theme": "dark"}
	}`)
	profile, err := h.profiles.UpdateProfile(ctx, ana.Account.ID, req)
	require.NoError(t, err)

	assert.Equal(t, "Loves hoodies", *profile.Bio)
	assert.Equal(t, "09171234567", *profile.PhoneNumber)
	assert.Equal(t, "Test User", *profile.FullName, "absent keys keep the stored value")
	assert.Equal(t, "2001-04-12", *profile.BirthDate)
	assert.Equal(t, []string{"apparel", "stickers"}, []string(profile.Interests))
	assert.Equal(t, map[string]string{"instagram": "@ana"}, profile.SocialLinks.Data())
	assert.Equal(t, "dark", profile.Preferences["theme"])

	stored, err := h.profiles.GetProfile(ctx, ana.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, "Loves hoodies", *stored.Bio)
	assert.Nil(t, stored.Address)
}

func TestUpdateProfileNullClearsField(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ana := h.verifiedAccount(t, "ana@example.com")

	_, err := h.profiles.UpdateProfile(ctx, ana.Account.ID, decodeUpdate(t, `{
		"bio": "Hi",
		"occupation": "Student",
		"interests": ["caps"],
		"preferences": {"theme": "dark"}
	}`))
	require.NoError(t, err)

	profile, err := h.profiles.UpdateProfile(ctx, ana.Account.ID, decodeUpdate(t, `{
		"bio": null,
		"interests": null,
		"preferences": null
	}`))
	require.NoError(t, err)
	assert.Nil(t, profile.Bio)
	assert.Nil(t, profile.Interests)
	assert.Nil(t, profile.Preferences)
	require.NotNil(t, profile.Occupation)
	assert.Equal(t, "Student", *profile.Occupation)

	stored, err := h.profiles.GetProfile(ctx, ana.Account.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Bio)
	assert.Equal(t, "Test User", *stored.FullName)

	// clearing an already empty field is not a change
	before := stored.UpdatedAt
	after, err := h.profiles.UpdateProfile(ctx, ana.Account.ID, decodeUpdate(t, `{"address": null}`))
	require.NoError(t, err)
	assert.Equal(t, before, after.UpdatedAt)
}

func TestUpdateProfileEmptyIsNoOp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ana := h.verifiedAccount(t, "ana@example.com")

	before, err := h.profiles.GetProfile(ctx, ana.Account.ID)
	require.NoError(t, err)

	after, err := h.profiles.UpdateProfile(ctx, ana.Account.ID, decodeUpdate(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, before.FullName, after.FullName)
	assert.Equal(t, before.Email, after.Email)

	// same values again do not count as a change either
	after, err = h.profiles.UpdateProfile(ctx, ana.Account.ID, dto.UpdateProfileRequest{FullName: dto.NewNullableString("Test User")})
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestUpdateProfileValidationMergesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ana := h.verifiedAccount(t, "ana@example.com")

	req := decodeUpdate(t, `{
		"bio": "ok",
		"email": "broken",
		"phone_number": "012345678901234567890123",
		"preferences": ["not", "an", "object"],
		"interests": {"a": 1},
		"birth_date": "12/04/2001"
	}`)
	_, err := h.profiles.UpdateProfile(ctx, ana.Account.ID, req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"email", "phone_number", "preferences", "interests", "birth_date"} {
		assert.True(t, verr.Has(field), field)
	}

	stored, err := h.profiles.GetProfile(ctx, ana.Account.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Bio)
}

func TestUpdateProfileBioLimit(t *testing.T) {
	h := newHarness(t)
	ana := h.verifiedAccount(t, "ana@example.com")

	_, err := h.profiles.UpdateProfile(context.Background(), ana.Account.ID, dto.UpdateProfileRequest{Bio: dto.NewNullableString(strings.Repeat("x", 501))})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestUpdatePreferencesReplacesWholesale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ana := h.verifiedAccount(t, "ana@example.com")

	_, err := h.profiles.UpdatePreferences(ctx, ana.Account.ID, dto.UpdatePreferencesRequest{Preferences: json.RawMessage(`{"theme":"dark","lang":"en"}`)})
	require.NoError(t, err)
	profile, err := h.profiles.UpdatePreferences(ctx, ana.Account.ID, dto.UpdatePreferencesRequest{Preferences: json.RawMessage(`{"lang":"fil"}`)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lang": "fil"}, map[string]any(profile.Preferences))

	_, err = h.profiles.UpdatePreferences(ctx, ana.Account.ID, dto.UpdatePreferencesRequest{})
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = h.profiles.UpdatePreferences(ctx, ana.Account.ID, dto.UpdatePreferencesRequest{Preferences: json.RawMessage(`"dark"`)})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestUploadAvatarSwapsAndRemovesPrevious(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ana := h.verifiedAccount(t, "ana@example.com")

	urlA, err := h.profiles.UploadAvatar(ctx, ana.Account.ID, pngBytes(t, 10), ClientMetadata{})
	require.NoError(t, err)
	profile, err := h.profiles.GetProfile(ctx, ana.Account.ID)
	require.NoError(t, err)
	require.NotNil(t, profile.AvatarPath)
	pathA := *profile.AvatarPath
	assert.True(t, strings.HasPrefix(pathA, "avatars/"))
	assert.True(t, strings.HasSuffix(pathA, ".png"))
	assert.Equal(t, "http://cdn.test/"+pathA, urlA)

	urlB, err := h.profiles.UploadAvatar(ctx, ana.Account.ID, pngBytes(t, 200), ClientMetadata{})
	require.NoError(t, err)
	profile, err = h.profiles.GetProfile(ctx, ana.Account.ID)
	require.NoError(t, err)
	pathB := *profile.AvatarPath

	assert.NotEqual(t, pathA, pathB)
	assert.Equal(t, "http://cdn.test/"+pathB, urlB)
	assert.False(t, h.assets.has(pathA))
	assert.True(t, h.assets.has(pathB))
	assert.Equal(t, 1, h.assets.len())
	assert.Contains(t, h.store.SecurityActions(), entity.AvatarUpdated)
}

func TestUploadAvatarFailedWriteKeepsPrevious(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ana := h.verifiedAccount(t, "ana@example.com")

	_, err := h.profiles.UploadAvatar(ctx, ana.Account.ID, pngBytes(t, 10), ClientMetadata{})
	require.NoError(t, err)
	profile, err := h.profiles.GetProfile(ctx, ana.Account.ID)
	require.NoError(t, err)
	pathA := *profile.AvatarPath

	h.assets.putErr = errBoom
	_, err = h.profiles.UploadAvatar(ctx, ana.Account.ID, pngBytes(t, 200), ClientMetadata{})
	require.ErrorIs(t, err, errBoom)

	profile, err = h.profiles.GetProfile(ctx, ana.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, pathA, *profile.AvatarPath)
	assert.True(t, h.assets.has(pathA))
}

type failingSaveProfiles struct {
	repository.ProfileRepository
	err error
}

func (f failingSaveProfiles) Save(context.Context, *entity.Profile) error { return f.err }

func TestUploadAvatarFailedSwapRemovesNewAsset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ana := h.verifiedAccount(t, "ana@example.com")

	_, err := h.profiles.UploadAvatar(ctx, ana.Account.ID, pngBytes(t, 10), ClientMetadata{})
	require.NoError(t, err)
	profile, err := h.profiles.GetProfile(ctx, ana.Account.ID)
	require.NoError(t, err)
	pathA := *profile.AvatarPath

	broken := NewProfileService(
		h.store.Accounts(),
		failingSaveProfiles{ProfileRepository: h.store.Profiles(), err: errBoom},
		h.store.SecurityLogs(),
		h.store.Transactor(),
		h.assets,
		NewValidator(),
		nil,
	)
	_, err = broken.UploadAvatar(ctx, ana.Account.ID, pngBytes(t, 200), ClientMetadata{})
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, 1, h.assets.len())
	assert.True(t, h.assets.has(pathA))
	profile, err = h.profiles.GetProfile(ctx, ana.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, pathA, *profile.AvatarPath)
}

func TestUploadAvatarValidation(t *testing.T) {
	h := newHarness(t)
	ana := h.verifiedAccount(t, "ana@example.com")

	tests := []struct {
		name string
		data []byte
	}{
		{"missing", nil},
		{"not an image", []byte("hello world, definitely not a picture")},
		{"too large", append(pngBytes(t, 1), bytes.Repeat([]byte{0}, MaxAvatarBytes)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.profiles.UploadAvatar(context.Background(), ana.Account.ID, tt.data, ClientMetadata{})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has("avatar"))
			assert.Zero(t, h.assets.len())
		})
	}
}
