package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	TitleMinLen   = 3
	TitleMaxLen   = 100
	FileURLMaxLen = 500
)

type (
	// Expense is a single expense row. FileURL holds either an object-store
	// key or, after passing through the signed-URL adapter, a signed
	// download URL. Nil means no attachment.
	Expense struct {
		ID      int64   `json:"id"`
		Title   string  `json:"title"`
		Amount  int64   `json:"amount"`
		FileURL *string `json:"fileUrl"`
	}

	// CreateExpense carries the fields a caller supplies when creating an
	// expense. The id is always server-assigned.
	CreateExpense struct {
		Title  string `json:"title"`
		Amount int64  `json:"amount"`
	}

	// UpdateExpense is a field-level patch. Nil fields are left untouched.
	// FileURL and FileKey both target the stored file_url column; FileURL
	// wins when both are present. An explicit empty string clears the
	// stored reference (persisted as NULL).
	UpdateExpense struct {
		Title   *string `json:"title"`
		Amount  *int64  `json:"amount"`
		FileURL *string `json:"fileUrl"`
		FileKey *string `json:"fileKey"`
	}
)

var (
	ErrTitleTooShort   = errors.New("title too short")
	ErrTitleTooLong    = errors.New("title too long")
	ErrInvalidAmount   = errors.New("amount must be a positive integer")
	ErrFileURLTooLong  = errors.New("file url too long")
	ErrEmptyPatch      = errors.New("empty patch")
	ErrNotFound        = errors.New("expense not found")
)

// ValidationError marks input errors that map to a 400 response.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid wraps err as a ValidationError.
func Invalid(err error) error {
	return &ValidationError{Err: err}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func validateTitle(title string) error {
	t := strings.TrimSpace(title)
	if len(t) < TitleMinLen {
		return Invalid(ErrTitleTooShort)
	}
	if len(t) > TitleMaxLen {
		return Invalid(ErrTitleTooLong)
	}
	return nil
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return Invalid(ErrInvalidAmount)
	}
	return nil
}

func (c CreateExpense) Validate() error {
	if err := validateTitle(c.Title); err != nil {
		return err
	}
	return validateAmount(c.Amount)
}

// IsEmpty reports whether the patch carries no fields at all. An empty
// patch is rejected at the API boundary rather than treated as a no-op.
func (u UpdateExpense) IsEmpty() bool {
	return u.Title == nil && u.Amount == nil && u.FileURL == nil && u.FileKey == nil
}

func (u UpdateExpense) Validate() error {
	if u.IsEmpty() {
		return Invalid(ErrEmptyPatch)
	}
	if u.Title != nil {
		if err := validateTitle(*u.Title); err != nil {
			return err
		}
	}
	if u.Amount != nil {
		if err := validateAmount(*u.Amount); err != nil {
			return err
		}
	}
	if v := u.FileValue(); v != nil && len(*v) > FileURLMaxLen {
		return Invalid(ErrFileURLTooLong)
	}
	return nil
}

// FileValue resolves the patch's target value for the file_url column.
// FileURL takes precedence over FileKey; the second return value reports
// whether the patch touches the column at all.
func (u UpdateExpense) FileValue() *string {
	if u.FileURL != nil {
		return u.FileURL
	}
	return u.FileKey
}

// TouchesFile reports whether the patch modifies the stored file reference.
func (u UpdateExpense) TouchesFile() bool {
	return u.FileURL != nil || u.FileKey != nil
}

// Apply merges the patch into e and returns the merged expense.
func (u UpdateExpense) Apply(e Expense) Expense {
	if u.Title != nil {
		e.Title = strings.TrimSpace(*u.Title)
	}
	if u.Amount != nil {
		e.Amount = *u.Amount
	}
	if u.TouchesFile() {
		if v := u.FileValue(); v != nil && *v == "" {
			e.FileURL = nil
		} else {
			e.FileURL = v
		}
	}
	return e
}

func (e Expense) String() string {
	return fmt.Sprintf("expense #%d %q (%d)", e.ID, e.Title, e.Amount)
}
