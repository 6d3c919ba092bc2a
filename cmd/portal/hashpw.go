package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"portal/api/internal/directory"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print bcrypt hashes for the seed accounts file",
	Long: `hash-password reads one password per line from stdin and prints the
bcrypt hash for each, ready to paste into the passwordHash field of an account
in seed.yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return hashPasswords(cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func hashPasswords(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	n := 0
	for scanner.Scan() {
		password := strings.TrimRight(scanner.Text(), "\r")
		if password == "" {
			continue
		}
		hash, err := directory.HashPassword(password)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, hash); err != nil {
			return err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read passwords: %w", err)
	}
	if n == 0 {
		return errors.New("no passwords on stdin")
	}
	return nil
}
