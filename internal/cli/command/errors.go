package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/jtuchinsky/finance-planner-cli/internal/core/domain"
)

const loginHint = "finance-cli auth login"

// fail converts err into an exit error carrying user guidance.
func (e *Env) fail(action string, err error) error {
	var b strings.Builder
	fmt.Fprintf(&b, "error: %s: %v", action, err)

	switch {
	case errors.Is(err, domain.ErrNotLoggedIn), errors.Is(err, domain.ErrNoActiveUser):
		fmt.Fprintf(&b, "\n\nLogin with: %s", loginHint)
	// A refresh that never reached the service is not an expired session.
	case errors.Is(err, domain.ErrServiceUnreachable):
		fmt.Fprintf(&b, "\n\nIs the auth service running at %s? Set it with --auth-url or CLI_AUTH_URL.", e.Config.Auth.URL)
	case errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrTokenRefreshFailed):
		fmt.Fprintf(&b, "\n\nYour session has expired, please log in again: %s", loginHint)
	case errors.Is(err, domain.ErrAuthenticationFailed) && strings.Contains(err.Error(), "401"):
		fmt.Fprintf(&b, "\n\nAuthentication failed, please log in again: %s", loginHint)
	}

	return cli.Exit(b.String(), 1)
}
