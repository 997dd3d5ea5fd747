package accesshttp

import (
	"errors"
	"net/http"

	"github.com/quizroom/quizroom/internal/access"
	"github.com/quizroom/quizroom/internal/platform/httpx"
)

// respondDecisionError turns engine errors into problem responses. Denials
// and failed verifications get user-facing text; integration errors keep
// their message so wiring mistakes are visible.
func respondDecisionError(w http.ResponseWriter, err error) {
	var quota *access.QuotaExceededError
	switch {
	case errors.Is(err, access.ErrNoContext):
		httpx.Problem(w, http.StatusUnauthorized, "No Context", err.Error())
	case errors.Is(err, access.ErrInvalidRole), errors.Is(err, access.ErrUnknownResource):
		httpx.Problem(w, http.StatusBadRequest, "Integration Error", err.Error())
	case access.IsVerificationError(err):
		httpx.Problem(w, http.StatusBadGateway, "Verification Failed", "we could not confirm access right now, please try again")
	case errors.As(err, &quota):
		httpx.Problem(w, http.StatusForbidden, "Quota Exceeded", quota.Error())
	case errors.Is(err, access.ErrAccessDenied):
		httpx.Problem(w, http.StatusForbidden, "Access Denied", "you do not have access to this resource")
	default:
		httpx.RespondError(w, err)
	}
}
