package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"sync"
	"testing"
	"time"

	"merchhub/internal/entity"
	"merchhub/internal/repository/memory"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testDepartmentID int64 = 1

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	Email string
	Link  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) SendVerification(_ context.Context, account *entity.Account, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{Email: account.Email, Link: link})
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *recordingNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no verification mail was sent")
	u, err := url.Parse(n.sent[len(n.sent)-1].Link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

type memoryAssets struct {
	mu        sync.Mutex
	files     map[string][]byte
	putErr    error
	deleteErr error
}

func newMemoryAssets() *memoryAssets {
	return &memoryAssets{files: map[string][]byte{}}
}

func (a *memoryAssets) Put(_ context.Context, path string, data []byte, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.putErr != nil {
		return a.putErr
	}
	a.files[path] = data
	return nil
}

func (a *memoryAssets) Delete(_ context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleteErr != nil {
		return a.deleteErr
	}
	delete(a.files, path)
	return nil
}

func (a *memoryAssets) URL(path string) string {
	return "http://cdn.test/" + path
}

func (a *memoryAssets) has(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.files[path]
	return ok
}

func (a *memoryAssets) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.files)
}

type harness struct {
	store    *memory.Store
	auth     *AuthService
	profiles *ProfileService
	notifier *recordingNotifier
	clock    *fakeClock
	assets   *memoryAssets
	logs     *test.Hook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	store.AddDepartment(entity.Department{ID: testDepartmentID, Name: "College of Computing Studies", Code: "CCS"})

	clock := &fakeClock{now: time.Date(2025, 9, 19, 8, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	assets := newMemoryAssets()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	validate := NewValidator()

	auth := NewAuthService(
		store.Accounts(),
		store.Profiles(),
		store.Tokens(),
		store.Departments(),
		store.SecurityLogs(),
		store.Transactor(),
		notifier,
		BcryptPasswordHasher{Cost: bcrypt.MinCost},
		VerificationSigner{Secret: []byte("test-secret-0123456789"), Issuer: "merchhub", Clock: clock},
		validate,
		clock,
		AuthConfig{
			VerificationURL: "http://api.test/api/email/verify",
			RedirectURL:     "merchhub://email-verified",
		},
		logger,
	)
	profiles := NewProfileService(
		store.Accounts(),
		store.Profiles(),
		store.SecurityLogs(),
		store.Transactor(),
		assets,
		validate,
		logger,
	)
	return &harness{
		store:    store,
		auth:     auth,
		profiles: profiles,
		notifier: notifier,
		clock:    clock,
		assets:   assets,
		logs:     hook,
	}
}

// verifiedAccount registers a student and confirms the mailed link.
func (h *harness) verifiedAccount(t *testing.T, email string) *AuthResult {
	t.Helper()
	ctx := context.Background()
	result, err := h.auth.Register(ctx, registerRequest("Test User", email), ClientMetadata{})
	require.NoError(t, err)
	_, err = h.auth.ConfirmEmail(ctx, h.notifier.lastToken(t), ClientMetadata{})
	require.NoError(t, err)
	return result
}

func pngBytes(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: shade, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var errBoom = errors.New("boom")
