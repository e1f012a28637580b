package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	domainauth "github.com/target/promptopt-client/internal/domain/auth"
)

var errNotLoggedIn = errors.New("not logged in, run `promptopt login` first")

type loginOptions struct {
	Username string
}

type registerOptions struct {
	Username string
	Email    string
	FullName string
}

func runLogin(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "login")
	var opts loginOptions
	fs.StringVar(&opts.Username, "username", "", "Account username (prompted when empty)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	username, err := promptValue(cc, "Username: ", opts.Username)
	if err != nil {
		return err
	}
	password, err := cc.Password("Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	user, err := cc.App.Session.Login(cc.Ctx, domainauth.Credentials{Username: username, Password: password})
	if err != nil {
		return err
	}
	return writef(cc.Out, "Logged in as %s\n", user.DisplayName())
}

func runRegister(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "register")
	var opts registerOptions
	fs.StringVar(&opts.Username, "username", "", "Account username (prompted when empty)")
	fs.StringVar(&opts.Email, "email", "", "Email address (prompted when empty)")
	fs.StringVar(&opts.FullName, "full-name", "", "Optional display name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	username, err := promptValue(cc, "Username: ", opts.Username)
	if err != nil {
		return err
	}
	email, err := promptValue(cc, "Email: ", opts.Email)
	if err != nil {
		return err
	}
	password, err := cc.Password("Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	confirm, err := cc.Password("Confirm password: ")
	if err != nil {
		return fmt.Errorf("read password confirmation: %w", err)
	}
	if password != confirm {
		return usageErrorf("passwords do not match")
	}

	user, err := cc.App.Session.Register(cc.Ctx, domainauth.Registration{
		Username: username,
		Email:    email,
		Password: password,
		FullName: strings.TrimSpace(opts.FullName),
	})
	if err != nil {
		return err
	}
	return writef(cc.Out, "Account created for %s. Run `promptopt login` to sign in.\n", user.Username)
}

func runLogout(cc *commandContext, args []string) error {
	if err := parseFlags(newFlagSet(cc, "logout"), args); err != nil {
		return err
	}
	if err := cc.App.Session.Logout(cc.Ctx); err != nil {
		return err
	}
	return writeln(cc.Out, "Logged out")
}

func runWhoami(cc *commandContext, args []string) error {
	if err := parseFlags(newFlagSet(cc, "whoami"), args); err != nil {
		return err
	}
	if !cc.App.Session.State().IsAuthenticated {
		return errNotLoggedIn
	}
	user, err := cc.App.Session.GetCurrentUser(cc.Ctx)
	if err != nil {
		return err
	}
	return printUser(cc, user)
}

func runStatus(cc *commandContext, args []string) error {
	if err := parseFlags(newFlagSet(cc, "status"), args); err != nil {
		return err
	}
	s := cc.App.Session.State()

	w := tabwriter.NewWriter(cc.Out, 0, 4, 2, ' ', 0)
	if err := writef(w, "Backend\t%s\n", cc.App.Client.BaseURL()); err != nil {
		return fmt.Errorf("write backend: %w", err)
	}
	if err := writef(w, "Session\t%s\n", s.Status()); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if s.User != nil {
		if err := writef(w, "User\t%s\n", s.User.DisplayName()); err != nil {
			return fmt.Errorf("write user: %w", err)
		}
	}
	if s.Error != "" {
		if err := writef(w, "Error\t%s\n", s.Error); err != nil {
			return fmt.Errorf("write error: %w", err)
		}
	}
	return w.Flush()
}

func printUser(cc *commandContext, user domainauth.User) error {
	w := tabwriter.NewWriter(cc.Out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Username", user.Username},
		{"Email", user.Email},
		{"Name", user.DisplayName()},
		{"Active", fmt.Sprintf("%t", user.IsActive)},
	}
	if !user.CreatedAt.IsZero() {
		rows = append(rows, [2]string{"Member since", user.CreatedAt.Format(time.DateOnly)})
	}
	for _, row := range rows {
		if err := writef(w, "%s\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("write %s: %w", strings.ToLower(row[0]), err)
		}
	}
	return w.Flush()
}
