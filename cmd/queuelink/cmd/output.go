// Package cmd implements the queuelink subcommands.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/session"
)

// PasswordEnv is read when --password is not given.
const PasswordEnv = "QUEUELINK_PASSWORD"

// userError shows the user-safe message while keeping the cause for errors.Is.
type userError struct {
	err error
}

func (e *userError) Error() string { return errors.UserMessage(e.err) }

func (e *userError) Unwrap() error { return e.err }

// friendly wraps err for display. Nil stays nil.
func friendly(err error) error {
	if err == nil {
		return nil
	}
	return &userError{err: err}
}

func password(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(PasswordEnv)
}

func roles(s session.Session) string {
	if len(s.Roles) == 0 {
		return "none"
	}
	out := make([]string, len(s.Roles))
	for i, r := range s.Roles {
		out[i] = string(r)
	}
	return strings.Join(out, ", ")
}

func printSession(w io.Writer, s session.Session) {
	fmt.Fprintf(w, "Status:  %s\n", s.Status)
	if s.UserID == "" {
		return
	}
	fmt.Fprintf(w, "User:    %s\n", s.UserID)
	fmt.Fprintf(w, "Roles:   %s\n", roles(s))
	if !s.TokenExpiry.IsZero() {
		fmt.Fprintf(w, "Expires: %s\n", s.TokenExpiry.Local().Format("2006-01-02 15:04:05 MST"))
	}
}
