package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tagdesk/tagdesk/internal/service"
)

func newPasswordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage wallet access passwords",
	}

	var (
		name      string
		expiresIn time.Duration
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an access password; the value is read from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := promptPassword(os.Stdin, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			in := service.CreateAccessPasswordInput{Name: name, Password: secret, Actor: cliActor}
			if expiresIn > 0 {
				at := time.Now().Add(expiresIn).UTC()
				in.ExpiresAt = &at
			}

			repo, err := a.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			svc, err := a.services(cmd.Context(), repo)
			if err != nil {
				return err
			}
			defer svc.close()

			created, err := svc.passwords.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, created)
			}
			fmt.Fprintf(a.out, "%s access password %q (id %s)\n", successText("created"), created.Name, created.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "label shown in the dashboard")
	create.Flags().DurationVar(&expiresIn, "expires-in", 0, "expire after this long, e.g. 720h (default never)")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}

var errPasswordMismatch = errors.New("passwords do not match")

// promptPassword asks for the password twice without echo. When stdin is not
// a terminal a single line is read instead, so the value can be piped.
func promptPassword(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return readPasswordLine(in)
	}

	fmt.Fprint(prompt, "Access password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(prompt, "Repeat: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errPasswordMismatch
	}
	return string(first), nil
}

func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password given on stdin")
	}
	return line, nil
}
