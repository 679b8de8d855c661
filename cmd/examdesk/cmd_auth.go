package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"examdesk/internal/core"
)

var authCmd = &cobra.Command{
	Use:   "auth [key] [secret]",
	Short: "Check a student's credentials",
	Long: `Verifies a secret for the given student key.

A student with no stored secret authenticates with the configured
bootstrap secret and is reported as first_login; they must set a real
secret with 'examdesk passwd' before anything else.`,
	Args: cobra.ExactArgs(2),
	RunE: runAuth,
}

var passwdCmd = &cobra.Command{
	Use:   "passwd [key] [new-secret]",
	Short: "Set or replace a student's secret",
	Args:  cobra.ExactArgs(2),
	RunE:  runPasswd,
}

func runAuth(cmd *cobra.Command, args []string) error {
	desk, err := newDesk()
	if err != nil {
		return err
	}
	defer func() { _ = desk.Close() }()

	result, err := desk.Authenticate(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result)
	if result == core.AuthInvalid {
		return errors.New("authentication failed")
	}
	return nil
}

func runPasswd(cmd *cobra.Command, args []string) error {
	desk, err := newDesk()
	if err != nil {
		return err
	}
	defer func() { _ = desk.Close() }()

	if err := desk.SetPassword(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "secret updated")
	return nil
}
