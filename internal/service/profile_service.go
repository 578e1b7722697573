package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"merchhub/internal/dto"
	"merchhub/internal/entity"
	"merchhub/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"gorm.io/datatypes"
)

const (
	MaxAvatarBytes = 2048 * 1024
	avatarDir      = "avatars"
)

var avatarFormats = map[string]struct {
	ext         string
	contentType string
}{
	"jpeg": {"jpg", "image/jpeg"},
	"png":  {"png", "image/png"},
	"gif":  {"gif", "image/gif"},
	"webp": {"webp", "image/webp"},
	"bmp":  {"bmp", "image/bmp"},
}

// AssetStore keeps avatar files. Paths are logical, slash separated and
// relative to the store root.
type AssetStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Delete(ctx context.Context, path string) error
	URL(path string) string
}

type ProfileService struct {
	accounts     repository.AccountRepository
	profiles     repository.ProfileRepository
	securityLogs repository.SecurityLogRepository
	tx           repository.Transactor
	assets       AssetStore
	validate     *validator.Validate
	logger       logrus.FieldLogger
}

func NewProfileService(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	securityLogs repository.SecurityLogRepository,
	tx repository.Transactor,
	assets AssetStore,
	validate *validator.Validate,
	logger logrus.FieldLogger,
) *ProfileService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ProfileService{
		accounts:     accounts,
		profiles:     profiles,
		securityLogs: securityLogs,
		tx:           tx,
		assets:       assets,
		validate:     validate,
		logger:       logger,
	}
}

// GetProfile returns the stored profile, or an unsaved default one.
func (s *ProfileService) GetProfile(ctx context.Context, accountID uuid.UUID) (*entity.Profile, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return entity.NewProfileFor(account), nil
	}
	return profile, nil
}

// UpdateProfile merges the supplied fields onto the profile. Absent fields
// keep their stored value; an explicit null clears it.
func (s *ProfileService) UpdateProfile(ctx context.Context, accountID uuid.UUID, input dto.UpdateProfileRequest) (*entity.Profile, error) {
	report := validateStruct(s.validate, input)

	var preferences map[string]any
	if isPresent(input.Preferences) && !isNull(input.Preferences) {
		if err := json.Unmarshal(input.Preferences, &preferences); err != nil || preferences == nil {
			report.Add("preferences", "The preferences must be an object.")
		}
	}
	var interests []string
	if isPresent(input.Interests) && !isNull(input.Interests) {
		if err := json.Unmarshal(input.Interests, &interests); err != nil || interests == nil {
			report.Add("interests", "The interests must be a list of strings.")
		}
	}
	var socialLinks map[string]string
	if isPresent(input.SocialLinks) && !isNull(input.SocialLinks) {
		if err := json.Unmarshal(input.SocialLinks, &socialLinks); err != nil || socialLinks == nil {
			report.Add("social_links", "The social links must be an object of strings.")
		}
	}
	if err := report.OrNil(); err != nil {
		return nil, err
	}

	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var profile *entity.Profile
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		profile, err = ensureProfile(ctx, s.profiles, account, true)
		if err != nil {
			return err
		}

		changed := false
		changed = setString(&profile.FullName, input.FullName) || changed
		changed = setString(&profile.Email, input.Email) || changed
		changed = setString(&profile.Bio, input.Bio) || changed
		changed = setString(&profile.PhoneNumber, input.PhoneNumber) || changed
		changed = setString(&profile.Address, input.Address) || changed
		changed = setString(&profile.BirthDate, input.BirthDate) || changed
		changed = setString(&profile.Gender, input.Gender) || changed
		changed = setString(&profile.Occupation, input.Occupation) || changed
		switch {
		case preferences != nil:
			profile.Preferences = datatypes.JSONMap(preferences)
			changed = true
		case isNull(input.Preferences) && profile.Preferences != nil:
			profile.Preferences = nil
			changed = true
		}
		switch {
		case interests != nil:
			profile.Interests = datatypes.JSONSlice[string](interests)
			changed = true
		case isNull(input.Interests) && profile.Interests != nil:
			profile.Interests = nil
			changed = true
		}
		switch {
		case socialLinks != nil:
			profile.SocialLinks = datatypes.NewJSONType(socialLinks)
			changed = true
		case isNull(input.SocialLinks) && profile.SocialLinks.Data() != nil:
			profile.SocialLinks = datatypes.JSONType[map[string]string]{}
			changed = true
		}
		if !changed {
			return nil
		}
		return s.profiles.Save(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdatePreferences replaces the preferences wholesale.
func (s *ProfileService) UpdatePreferences(ctx context.Context, accountID uuid.UUID, input dto.UpdatePreferencesRequest) (*entity.Profile, error) {
	var preferences map[string]any
	if !isPresent(input.Preferences) || isNull(input.Preferences) {
		return nil, fieldError("preferences", "The preferences field is required.")
	}
	if err := json.Unmarshal(input.Preferences, &preferences); err != nil || preferences == nil {
		return nil, fieldError("preferences", "The preferences must be an object.")
	}

	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var profile *entity.Profile
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		profile, err = ensureProfile(ctx, s.profiles, account, true)
		if err != nil {
			return err
		}
		profile.Preferences = datatypes.JSONMap(preferences)
		return s.profiles.Save(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UploadAvatar stores the new image, points the profile at it and only then
// removes the previous file. A failure before the swap leaves the old avatar
// in place.
func (s *ProfileService) UploadAvatar(ctx context.Context, accountID uuid.UUID, data []byte, meta ClientMetadata) (string, error) {
	format, verr := inspectAvatar(data)
	if verr != nil {
		return "", verr
	}

	account, err := s.account(ctx, accountID)
	if err != nil {
		return "", err
	}

	kind := avatarFormats[format]
	newPath := fmt.Sprintf("%s/%s.%s", avatarDir, uuid.NewString(), kind.ext)
	if err := s.assets.Put(ctx, newPath, data, kind.contentType); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}

	var oldPath *string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		profile, err := ensureProfile(ctx, s.profiles, account, true)
		if err != nil {
			return err
		}
		oldPath = profile.AvatarPath
		profile.AvatarPath = &newPath
		return s.profiles.Save(ctx, profile)
	})
	if err != nil {
		if delErr := s.assets.Delete(ctx, newPath); delErr != nil {
			s.logger.WithError(delErr).WithField("path", newPath).Warn("orphaned avatar cleanup failed")
		}
		return "", err
	}

	if oldPath != nil && *oldPath != newPath {
		if err := s.assets.Delete(ctx, *oldPath); err != nil {
			s.logger.WithError(err).WithField("path", *oldPath).Warn("previous avatar delete failed")
		}
	}

	if s.securityLogs != nil {
		_ = s.securityLogs.Log(ctx, &entity.SecurityLog{
			AccountID: &accountID,
			IPAddress: meta.IPAddress,
			Action:    entity.AvatarUpdated,
		})
	}
	return s.assets.URL(newPath), nil
}

func (s *ProfileService) AvatarURL(path string) string {
	return s.assets.URL(path)
}

func (s *ProfileService) account(ctx context.Context, accountID uuid.UUID) (*entity.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// ensureProfile returns the account's profile, creating it from the account
// defaults when missing. lock takes a row lock for read-modify-write.
func ensureProfile(ctx context.Context, profiles repository.ProfileRepository, account *entity.Account, lock bool) (*entity.Profile, error) {
	find := profiles.FindByAccountID
	if lock {
		find = profiles.FindByAccountIDForUpdate
	}
	profile, err := find(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	profile = entity.NewProfileFor(account)
	if err := profiles.Create(ctx, profile); err != nil {
		return nil, err
	}
	if profile.ID != 0 {
		return profile, nil
	}
	// Lost a creation race; the other writer's row is the profile.
	profile, err = find(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile for account %s vanished", account.ID)
	}
	return profile, nil
}

func inspectAvatar(data []byte) (string, error) {
	switch {
	case len(data) == 0:
		return "", fieldError("avatar", "The avatar field is required.")
	case len(data) > MaxAvatarBytes:
		return "", fieldError("avatar", "The avatar may not be greater than 2048 kilobytes.")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fieldError("avatar", "The avatar must be an image.")
	}
	if _, ok := avatarFormats[format]; !ok {
		return "", fieldError("avatar", "The avatar must be a file of type: jpeg, png, gif, webp, bmp.")
	}
	return format, nil
}

func setString(dst **string, value dto.NullableString) bool {
	if !value.Set {
		return false
	}
	if value.Value == nil {
		if *dst == nil {
			return false
		}
		*dst = nil
		return true
	}
	if *dst != nil && **dst == *value.Value {
		return false
	}
	v := *value.Value
	*dst = &v
	return true
}

func isPresent(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) > 0
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
