package firebase

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/identity"
)

// toolkitError is the Identity Toolkit error envelope.
type toolkitError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// errorCode extracts the leading code of messages such as "TOO_MANY_ATTEMPTS_TRY_LATER : Try again later.".
func errorCode(body string) string {
	var tErr toolkitError
	if err := json.Unmarshal([]byte(body), &tErr); err != nil {
		return ""
	}
	code := tErr.Error.Message
	if i := strings.IndexAny(code, " :"); i >= 0 {
		code = code[:i]
	}
	return code
}

func sendError(code string) error {
	switch code {
	case "INVALID_PHONE_NUMBER":
		return &identity.OTPSendError{Reason: "invalid phone number"}
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return &identity.OTPSendError{Reason: "too many attempts, try again later"}
	case "CAPTCHA_CHECK_FAILED":
		return &identity.OTPSendError{Reason: "captcha check failed"}
	case "QUOTA_EXCEEDED":
		return &identity.OTPSendError{Reason: "sms quota exceeded"}
	case "":
		return &identity.OTPSendError{}
	default:
		return &identity.OTPSendError{Reason: strings.ToLower(strings.ReplaceAll(code, "_", " "))}
	}
}

// confirmError maps only the codes that say the code or challenge is bad;
// anything else leaves the challenge usable.
func confirmError(code string) error {
	switch code {
	case "INVALID_CODE", "INVALID_VERIFICATION_CODE", "MISSING_CODE":
		return identity.ErrInvalidOTP
	case "SESSION_EXPIRED", "CODE_EXPIRED", "INVALID_SESSION_INFO", "MISSING_SESSION_INFO":
		return identity.ErrChallengeExpired
	case "":
		return errors.New("confirming phone code: unexpected response")
	default:
		return errors.Errorf("confirming phone code: %s", code)
	}
}

// signInError returns nil for codes that do not mean bad credentials.
func signInError(code string) error {
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED", "INVALID_EMAIL":
		return identity.ErrInvalidCredentials
	}
	return nil
}
