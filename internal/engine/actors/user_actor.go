package actors

import (
	"log"
	"strconv"
	"strings"
	"time"
	"unicode"

	stdctx "context"

	"lilypad/internal/database"
	"lilypad/internal/models"
	"lilypad/internal/oauth"
	"lilypad/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Message types for identity operations
type (
	RegisterUserMsg struct {
		Username string
		Password string
	}

	LoginMsg struct {
		Username string
		Password string
	}

	// ExternalLoginMsg resolves an OAuth profile to a local user, creating
	// one on first login (find-or-create by hashed provider subject).
	ExternalLoginMsg struct {
		Profile *oauth.Profile
	}

	GetUserMsg struct {
		UserID uuid.UUID
	}

	GetUserByNameMsg struct {
		Username string
	}
)

// UserActor serializes every identity operation through its single mailbox,
// so two concurrent registrations of the same username or two concurrent
// external logins for the same subject cannot both take the create branch.
// The store's unique constraints are the backstop when multiple processes
// share one database.
type UserActor struct {
	store database.Store
}

func NewUserActor(store database.Store) actor.Actor {
	return &UserActor{store: store}
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func (a *UserActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Printf("UserActor started")

	case *RegisterUserMsg:
		a.handleRegister(context, msg)
	case *LoginMsg:
		a.handleLogin(context, msg)
	case *ExternalLoginMsg:
		a.handleExternalLogin(context, msg)
	case *GetUserMsg:
		a.handleGetUser(context, msg)
	case *GetUserByNameMsg:
		a.handleGetUserByName(context, msg)
	}
}

func storeCtx() (stdctx.Context, stdctx.CancelFunc) {
	return stdctx.WithTimeout(stdctx.Background(), 5*time.Second)
}

func (a *UserActor) handleRegister(context actor.Context, msg *RegisterUserMsg) {
	ctx, cancel := storeCtx()
	defer cancel()

	if strings.TrimSpace(msg.Username) == "" || msg.Password == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Username and password are required", nil))
		return
	}

	if _, err := a.store.GetUserByUsername(ctx, msg.Username); err == nil {
		context.Respond(utils.NewDuplicateUsernameError(msg.Username))
		return
	} else if !utils.IsErrorCode(err, utils.ErrUserNotFound) {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to check username", err))
		return
	}

	hashedPassword, err := hashPassword(msg.Password)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Failed to hash password", err))
		return
	}

	user := &models.User{
		ID:             uuid.New(),
		Username:       msg.Username,
		HashedPassword: hashedPassword,
		MemberSince:    time.Now(),
	}

	if err := a.store.SaveUser(ctx, user); err != nil {
		if appErr, ok := err.(*utils.AppError); ok {
			context.Respond(appErr)
			return
		}
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to save user", err))
		return
	}

	log.Printf("Registered user %s (%s)", user.Username, user.ID)
	context.Respond(user)
}

func (a *UserActor) handleLogin(context actor.Context, msg *LoginMsg) {
	ctx, cancel := storeCtx()
	defer cancel()

	user, err := a.store.GetUserByUsername(ctx, msg.Username)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrUserNotFound) {
			context.Respond(utils.NewUserNotFoundError(msg.Username))
			return
		}
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch user", err))
		return
	}

	// OAuth-only accounts have no password to compare against.
	if user.HashedPassword == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidCredentials, "Invalid credentials", nil))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(msg.Password)); err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidCredentials, "Invalid credentials", nil))
		return
	}

	log.Printf("Login successful for user: %s", user.Username)
	context.Respond(user)
}

func (a *UserActor) handleExternalLogin(context actor.Context, msg *ExternalLoginMsg) {
	ctx, cancel := storeCtx()
	defer cancel()

	if msg.Profile == nil || msg.Profile.Subject == "" {
		context.Respond(utils.NewProviderError("profile missing stable subject", nil))
		return
	}

	externalID := oauth.HashSubject(msg.Profile.Subject)

	user, err := a.store.GetUserByExternalID(ctx, externalID)
	if err == nil {
		context.Respond(user)
		return
	}
	if !utils.IsErrorCode(err, utils.ErrUserNotFound) {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to look up external identity", err))
		return
	}

	username, err := a.pickUsername(ctx, msg.Profile)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to derive username", err))
		return
	}

	user = &models.User{
		ID:          uuid.New(),
		Username:    username,
		ExternalID:  externalID,
		AvatarURL:   msg.Profile.AvatarURL,
		MemberSince: time.Now(),
	}

	if err := a.store.SaveUser(ctx, user); err != nil {
		// Another process may have created the account between our lookup
		// and insert; the loser retries as a lookup.
		if utils.IsErrorCode(err, utils.ErrDuplicate) || utils.IsErrorCode(err, utils.ErrDuplicateUsername) {
			if existing, lookupErr := a.store.GetUserByExternalID(ctx, externalID); lookupErr == nil {
				context.Respond(existing)
				return
			}
		}
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to save user", err))
		return
	}

	log.Printf("Created user %s from external identity", user.Username)
	context.Respond(user)
}

// pickUsername derives a username from the profile and resolves collisions
// with a numeric suffix: alice, alice2, alice3, ...
func (a *UserActor) pickUsername(ctx stdctx.Context, profile *oauth.Profile) (string, error) {
	base := sanitizeUsername(profile.Name)
	if base == "" {
		if at := strings.IndexByte(profile.Email, '@'); at > 0 {
			base = sanitizeUsername(profile.Email[:at])
		}
	}
	if base == "" {
		base = "pondling"
	}

	candidate := base
	for i := 2; ; i++ {
		_, err := a.store.GetUserByUsername(ctx, candidate)
		if utils.IsErrorCode(err, utils.ErrUserNotFound) {
			return candidate, nil
		}
		if err != nil && !utils.IsErrorCode(err, utils.ErrUserNotFound) {
			return "", err
		}
		candidate = base + strconv.Itoa(i)
	}
}

func sanitizeUsername(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (a *UserActor) handleGetUser(context actor.Context, msg *GetUserMsg) {
	ctx, cancel := storeCtx()
	defer cancel()

	user, err := a.store.GetUser(ctx, msg.UserID)
	if err != nil {
		if appErr, ok := err.(*utils.AppError); ok {
			context.Respond(appErr)
			return
		}
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch user", err))
		return
	}
	context.Respond(user)
}

func (a *UserActor) handleGetUserByName(context actor.Context, msg *GetUserByNameMsg) {
	ctx, cancel := storeCtx()
	defer cancel()

	user, err := a.store.GetUserByUsername(ctx, msg.Username)
	if err != nil {
		if appErr, ok := err.(*utils.AppError); ok {
			context.Respond(appErr)
			return
		}
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch user", err))
		return
	}
	context.Respond(user)
}
