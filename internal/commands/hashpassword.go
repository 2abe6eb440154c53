// Package commands holds the CLI subcommands that do not start the server.
package commands

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"evcal/internal/auth"
)

// HashPassword implements `evcal hash-password`. It prompts for a username
// and password and prints the basic_auth block to paste into config.yaml.
// The exit code is returned.
func HashPassword(args []string) int {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	username := fs.String("user", "", "username (prompted if empty)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: evcal hash-password [-user NAME]\n\n")
		fmt.Fprintf(os.Stderr, "Prints an Argon2id basic_auth block for config.yaml.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	p := prompter{in: bufio.NewReader(os.Stdin), out: os.Stderr, fd: int(os.Stdin.Fd())}
	snippet, err := hashPasswordSnippet(p, *username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprint(os.Stdout, snippet)
	return 0
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

func (p prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// secret reads without echo on a terminal; piped input is read as a line.
func (p prompter) secret(prompt string) (string, error) {
	if !term.IsTerminal(p.fd) {
		return p.line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func hashPasswordSnippet(p prompter, username string) (string, error) {
	var err error
	if username == "" {
		if username, err = p.line("Enter username: "); err != nil {
			return "", fmt.Errorf("reading username: %w", err)
		}
	}
	if username == "" {
		return "", errors.New("username cannot be empty")
	}

	password, err := p.secret("Enter password:   ")
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	confirm, err := p.secret("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("reading password confirmation: %w", err)
	}
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("basic_auth:\n  username: %q\n  password_hash: %q\n", username, hash), nil
}
