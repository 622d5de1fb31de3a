package cloud

import (
	"strings"
	"unicode/utf8"
)

// MinCredentialLength is the shortest accepted username or password.
const MinCredentialLength = 3

// Field identifies the form input a validation error refers to.
type Field int

const (
	FieldUsername Field = iota
	FieldPassword
	FieldConfirm
	FieldSetName
	FieldDescription
)

// ValidationError is a rejected form input. Title and Message are shown to
// the user as a blocking notification; Field tells the form where to focus.
type ValidationError struct {
	Field   Field
	Title   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Title + " " + e.Message
}

// ValidateUsername accepts ASCII letters, digits and underscores, at least
// MinCredentialLength long. The character check runs first.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	for i := 0; i < len(username); i++ {
		if !isUsernameByte(username[i]) {
			return &ValidationError{
				Field:   FieldUsername,
				Title:   "Invalid.",
				Message: "Usernames may only be letters, numbers, underscores",
			}
		}
	}
	if len(username) < MinCredentialLength {
		return &ValidationError{
			Field:   FieldUsername,
			Title:   "Too short.",
			Message: "Username must be at least 3 characters.",
		}
	}
	return nil
}

func isUsernameByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// ValidatePassword requires at least MinCredentialLength characters.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(strings.TrimSpace(password)) < MinCredentialLength {
		return &ValidationError{
			// The username field takes focus on this error, as in the login form.
			Field:   FieldUsername,
			Title:   "Too short.",
			Message: "Passwords must be at least 3 characters.",
		}
	}
	return nil
}

// ValidateConfirm requires the confirmation to match the password exactly.
func ValidateConfirm(password, confirm string) error {
	if password != confirm {
		return &ValidationError{
			Field:   FieldPassword,
			Title:   "Mismatch.",
			Message: "Passwords do not match.",
		}
	}
	return nil
}

// ValidateSetName requires a non-blank set name.
func ValidateSetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{
			Field:   FieldSetName,
			Title:   "Empty",
			Message: "Set name cannot be empty",
		}
	}
	return nil
}

// ValidatePublicDescription requires a non-blank description for public sets.
func ValidatePublicDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return &ValidationError{
			Field:   FieldDescription,
			Title:   "Empty",
			Message: "Public description cannot be empty",
		}
	}
	return nil
}

// ValidateCredentials runs the login checks in the order the form reports them.
func ValidateCredentials(creds Credentials, createAccount bool) error {
	if err := ValidateUsername(creds.Username); err != nil {
		return err
	}
	if err := ValidatePassword(creds.Password); err != nil {
		return err
	}
	if createAccount {
		return ValidateConfirm(creds.Password, creds.Confirm)
	}
	return nil
}
