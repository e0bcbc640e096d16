package dashboard

import (
	"errors"

	"openvote/dashboard/internal/apperr"
	"openvote/dashboard/internal/legal"
)

type Level string

const (
	// LevelSilent notices change the view without a message.
	LevelSilent  Level = "silent"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is what the presentation layer shows for an outcome.
type Notice struct {
	Level   Level  `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var noMatches = Notice{Level: LevelInfo, Code: "no_matches", Message: "No article of the electoral code matches this report."}

type noticeRule struct {
	kind   error
	notice Notice
	// detail uses the error's own message when it has one.
	detail bool
}

// Order matters: component kinds wrap transport kinds, and an expired
// credential wins over everything.
var noticeRules = []noticeRule{
	{apperr.ErrAuthorizationExpired, Notice{LevelSilent, "session_expired", "Your session has ended."}, false},
	{apperr.ErrNoSession, Notice{LevelSilent, "no_session", "Sign in to continue."}, false},
	{legal.ErrSuperseded, Notice{LevelSilent, "superseded", "The selection changed."}, false},
	{apperr.ErrPermissionDenied, Notice{LevelWarning, "permission_denied", "Your role does not allow this action."}, false},
	{apperr.ErrInvalidStateTransition, Notice{LevelWarning, "invalid_transition", "This report has already been processed."}, false},
	{apperr.ErrValidation, Notice{LevelWarning, "validation", "Some fields are missing or invalid."}, true},
	{apperr.ErrAuthentication, Notice{LevelError, "authentication_failed", "Sign-in failed."}, true},
	{apperr.ErrQualification, Notice{LevelError, "qualification_failed", "Legal qualification is unavailable right now."}, false},
	{apperr.ErrTransitionFailed, Notice{LevelError, "transition_failed", "The status change was not saved."}, false},
	{apperr.ErrTransientNetwork, Notice{LevelError, "network", "The server could not be reached."}, false},
}

// NoticeFor maps an error to its notice. A nil error maps to the zero Notice.
func NoticeFor(err error) Notice {
	if err == nil {
		return Notice{}
	}
	for _, rule := range noticeRules {
		if !errors.Is(err, rule.kind) {
			continue
		}
		n := rule.notice
		if rule.detail {
			if de, ok := apperr.As(err); ok && de.Message != "" {
				n.Message = de.Message
			}
		}
		return n
	}
	return Notice{Level: LevelError, Code: "unexpected", Message: "Something went wrong."}
}

// QualificationNotice is the notice for a Qualify outcome. A successful
// qualification with matches needs none and reports false.
func QualificationNotice(res legal.Result, err error) (Notice, bool) {
	if err != nil {
		return NoticeFor(err), true
	}
	if res.NoMatches() {
		return noMatches, true
	}
	return Notice{}, false
}
