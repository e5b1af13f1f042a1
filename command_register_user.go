package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RegisterAccountMessage carries a self-service signup
type RegisterAccountMessage struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate will run validation rules
func (e RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Username, validation.Required, validation.Length(3, 30)),
		validation.Field(&e.Password, validation.Required, validation.Length(6, 0)),
		validation.Field(&e.DisplayName, validation.Length(0, 100)),
	)
}

// RegisterAccountHandler creates accounts. The account whose email matches
// ownerEmail is created with the owner role, every other account starts free.
type RegisterAccountHandler struct {
	repo       RepositoryManager
	ownerEmail string
}

// NewRegisterAccountHandler returns a handler using ownerEmail to seed the owner
func NewRegisterAccountHandler(repo RepositoryManager, ownerEmail string) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:       repo,
		ownerEmail: NormalizeEmail(ownerEmail),
	}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) (*Account, error) {
	if err := event.Validate(); err != nil {
		return nil, validationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var account *Account
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		accounts := h.repo.Accounts()

		if _, err := accounts.GetByEmailTx(ctx, tx, event.Email); err == nil {
			return ErrEmailTaken
		} else if !HasTextCode(err, TextCodeAccountNotFound) {
			return err
		}

		if _, err := accounts.GetByUsernameTx(ctx, tx, event.Username); err == nil {
			return ErrUsernameTaken
		} else if !HasTextCode(err, TextCodeAccountNotFound) {
			return err
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		record := &Account{
			Email:        event.Email,
			Username:     event.Username,
			DisplayName:  strings.TrimSpace(event.DisplayName),
			PasswordHash: hash,
			Role:         h.roleFor(event.Email),
		}

		account, err = accounts.CreateTx(ctx, tx, record)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	return account, nil
}

func (h *RegisterAccountHandler) roleFor(email string) UserRole {
	if h.ownerEmail != "" && NormalizeEmail(email) == h.ownerEmail {
		return RoleOwner
	}
	return RoleFree
}
