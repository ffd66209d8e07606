// Command wspushctl mints access tokens and password hashes for wspush.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wspush/internal/domain"
	"github.com/pscheid92/wspush/internal/platform/password"
	"github.com/pscheid92/wspush/internal/platform/token"
)

const usage = `usage: wspushctl <command> [flags]

commands:
  token          mint a signed bearer token (reads TOKEN_SECRET)
  hash-password  hash a password read from stdin
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()

	var err error
	switch os.Args[1] {
	case "token":
		err = runToken(os.Args[2:])
	case "hash-password":
		err = runHashPassword(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func runToken(args []string) error {
	defaultTTL, err := envDuration("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("token", flag.ExitOnError)
	var (
		secret   = fs.String("secret", os.Getenv("TOKEN_SECRET"), "Signing secret (or set TOKEN_SECRET env)")
		ttl      = fs.Duration("ttl", defaultTTL, "Token lifetime (or set TOKEN_TTL env)")
		subject  = fs.String("subject", "", "Subject (user id), required")
		username = fs.String("username", "", "Username")
		role     = fs.String("role", domain.RoleNormal.String(), "Role: normal, enterprise or admin")
		status   = fs.String("status", domain.StatusActivated.String(), "Account status")
	)
	_ = fs.Parse(args)

	r, ok := domain.ParseRole(*role)
	if !ok {
		return fmt.Errorf("unknown role %q", *role)
	}
	s, ok := domain.ParseStatus(*status)
	if !ok {
		return fmt.Errorf("unknown status %q", *status)
	}

	helper, err := token.NewHelper(*secret, *ttl, clockwork.NewRealClock())
	if err != nil {
		return fmt.Errorf("failed to create token helper: %w", err)
	}

	raw, err := helper.Generate(token.Claims{
		Subject:  *subject,
		Username: *username,
		Role:     r,
		Status:   s,
	})
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	fmt.Println(raw)
	return nil
}

func runHashPassword(args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	rounds := fs.Int("rounds", password.DefaultRounds, "PBKDF2 iteration count")
	_ = fs.Parse(args)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read password from stdin: %w", err)
	}
	raw := strings.TrimRight(line, "\r\n")
	if raw == "" {
		return fmt.Errorf("password must not be empty")
	}

	hashed, err := password.HashWithRounds(raw, *rounds)
	if err != nil {
		return err
	}

	fmt.Println(hashed)
	return nil
}

// envDuration reads key as a time.Duration, returning fallback when unset.
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid duration: %w", key, err)
	}
	return d, nil
}
