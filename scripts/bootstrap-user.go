package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/metrics"
	"github.com/gatehouse/gatehouse/internal/repository"
	"github.com/gatehouse/gatehouse/internal/service"
)

type output struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Algorithm string    `json:"algorithm"`
	CreatedAt time.Time `json:"created_at"`
}

type store interface {
	service.CredentialStore
	Close() error
}

func main() {
	defaults := auth.DefaultHasherConfig()
	var (
		driver        = flag.String("driver", envOr("STORE_DRIVER", "sqlite"), "Credential store: postgres or sqlite")
		databaseURL   = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		sqlitePath    = flag.String("sqlite-path", envOr("SQLITE_PATH", "gatehouse.db"), "SQLite database file")
		identity      = flag.String("identity", "", "Account identity (usually an email address)")
		passwordStdin = flag.Bool("password-stdin", false, "Read the password from the first line of stdin")
		algorithm     = flag.String("algorithm", envOr("HASH_ALGORITHM", defaults.Algorithm), "Hash algorithm: bcrypt or argon2id")
		format        = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	password := os.Getenv("GATEHOUSE_BOOTSTRAP_PASSWORD")
	if *passwordStdin {
		line, err := readLine(os.Stdin)
		if err != nil {
			fail("read password:", err)
		}
		password = line
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := openStore(ctx, *driver, *databaseURL, *sqlitePath)
	if err != nil {
		fail("open store:", err)
	}
	defer st.Close()

	hc := defaults
	hc.Algorithm = *algorithm
	hasher, err := auth.NewHasher(hc)
	if err != nil {
		fail("hasher:", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc := service.NewAuthService(st, hasher, nil, metrics.NewNoop(), logger)

	// Same validation and uniqueness rules as the sign-up endpoint.
	err = svc.SignUp(ctx, service.SignUpInput{
		Identity:        *identity,
		Password:        password,
		PasswordConfirm: password,
	})
	if err != nil {
		fail(string(service.CodeFor(err))+":", errors.New(service.MessageFor(err)))
	}

	user, err := st.FindByIdentity(ctx, strings.TrimSpace(*identity))
	if err != nil {
		fail("read back account:", err)
	}

	out := output{
		ID:        user.ID,
		Identity:  user.Identity,
		Algorithm: hasher.Algorithm(),
		CreatedAt: user.CreatedAt,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.ID)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fail("invalid format;", errors.New("use plain or json"))
	}
}

func openStore(ctx context.Context, driver, databaseURL, sqlitePath string) (store, error) {
	switch driver {
	case "postgres":
		if databaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
		return repository.New(ctx, databaseURL)
	case "sqlite":
		return repository.OpenSQLite(ctx, sqlitePath)
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fail(prefix string, err error) {
	fmt.Fprintln(os.Stderr, prefix, err)
	os.Exit(1)
}
