package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("notblank_trimmed", validateNotBlank); err != nil {
		panic(fmt.Sprintf("failed to register notblank_trimmed validator: %v", err))
	}
	if err := Validate.RegisterValidation("chat_role", validateChatRole); err != nil {
		panic(fmt.Sprintf("failed to register chat_role validator: %v", err))
	}
	if err := Validate.RegisterValidation("burst_rate", validateBurstRate); err != nil {
		panic(fmt.Sprintf("failed to register burst_rate validator: %v", err))
	}
}

// validateNotBlank rejects strings that are empty once surrounding whitespace is removed
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// validateChatRole accepts exactly the two roles the upstream understands
func validateChatRole(fl validator.FieldLevel) bool {
	return IsChatRole(fl.Field().String())
}

// validateBurstRate checks the "<count>-<S|M|H|D>" formatted rate used by the burst limiter
func validateBurstRate(fl validator.FieldLevel) bool {
	return ValidateBurstRate(fl.Field().String()) == nil
}

// IsChatRole reports whether role is "user" or "model". Matching is exact.
func IsChatRole(role string) bool {
	return role == models.RoleUser || role == models.RoleModel
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateBurstRate validates a burst rate string such as "5-S" or "100-M"
func ValidateBurstRate(value string) error {
	count, period, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok || count == "" {
		return fmt.Errorf("invalid burst rate: %q (must look like '5-S' or '100-M')", value)
	}
	for _, r := range count {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid burst rate: %q (count must be a positive integer)", value)
		}
	}
	if strings.Trim(count, "0") == "" {
		return fmt.Errorf("invalid burst rate: %q (count must be a positive integer)", value)
	}
	switch strings.ToUpper(period) {
	case "S", "M", "H", "D":
		return nil
	default:
		return fmt.Errorf("invalid burst rate: %q (period must be 'S', 'M', 'H', or 'D')", value)
	}
}
